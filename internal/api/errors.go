package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	"github.com/taoyao-code/locker-gateway/internal/outbound"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
)

// 错误码
const (
	CodeCellNotFound       = "CELL_NOT_FOUND"
	CodeNoAvailableCells   = "NO_AVAILABLE_CELLS"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeCommandTimeout     = "COMMAND_TIMEOUT"
	CodeTransportError     = "TRANSPORT_ERROR"
	CodeNotConnected       = "NOT_CONNECTED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse 统一错误体
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify 领域错误 → HTTP 状态与错误码
func classify(err error) (int, string, string) {
	var te *serialport.TransportError
	switch {
	case errors.Is(err, cell.ErrCellNotFound):
		return http.StatusNotFound, CodeCellNotFound, "Cell not found"
	case errors.Is(err, cell.ErrNoAvailableCells):
		return http.StatusNotFound, CodeNoAvailableCells, "No available cells"
	case errors.Is(err, cell.ErrPreconditionFailed):
		return http.StatusConflict, CodePreconditionFailed, err.Error()
	case errors.Is(err, locker.ErrInvalidColor):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.Is(err, outbound.ErrCommandTimeout):
		return http.StatusGatewayTimeout, CodeCommandTimeout, err.Error()
	case errors.As(err, &te), errors.Is(err, kz004.ErrMalformed), errors.Is(err, kz004.ErrTruncated):
		return http.StatusBadGateway, CodeTransportError, err.Error()
	case errors.Is(err, locker.ErrNotConnected), errors.Is(err, locker.ErrLinkLost):
		return http.StatusServiceUnavailable, CodeNotConnected, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, err.Error()
	}
}

func writeError(c *gin.Context, err error) {
	status, code, msg := classify(err)
	c.JSON(status, ErrorResponse{Error: true, Code: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: true, Code: CodeInvalidRequest, Message: msg})
}
