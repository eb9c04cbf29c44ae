package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/events"
	"github.com/taoyao-code/locker-gateway/internal/locker"
)

// LockerHandler 锁柜 API 处理器
type LockerHandler struct {
	svc       *locker.Service
	hub       *events.Hub
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewLockerHandler 创建锁柜 API 处理器
func NewLockerHandler(svc *locker.Service, hub *events.Hub, heartbeat time.Duration, logger *zap.Logger) *LockerHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockerHandler{svc: svc, hub: hub, heartbeat: heartbeat, logger: logger}
}

// OpenRequest 开门请求
type OpenRequest struct {
	Reason string `json:"reason"`
}

// OpenAvailableRequest 按尺寸开门请求
type OpenAvailableRequest struct {
	Size   string `json:"size"`
	Reason string `json:"reason"`
}

// ReserveRequest 预约请求
type ReserveRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// LEDRequest 指示灯请求
type LEDRequest struct {
	Color string `json:"color" binding:"required"`
}

// SuccessResponse 布尔结果
type SuccessResponse struct {
	Success bool `json:"success"`
}

// WeightResponse 称重结果
type WeightResponse struct {
	Weight int `json:"weight"`
}

// bindOptional 请求体可以为空
func bindOptional(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func reason(r string) string {
	if r == "" {
		return "client"
	}
	return r
}

// Status 锁柜状态
// @Summary 锁柜状态
// @Description 连接状态、设备地址、固件版本与全部格口
// @Tags 锁柜
// @Produce json
// @Success 200 {object} locker.Status
// @Router /api/locker/status [get]
func (h *LockerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// ListCells 全部格口
// @Summary 全部格口
// @Tags 锁柜
// @Produce json
// @Success 200 {array} cell.Cell
// @Router /api/locker/cells [get]
func (h *LockerHandler) ListCells(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Cells())
}

// ListAvailable 可用格口
// @Summary 可用格口
// @Tags 锁柜
// @Produce json
// @Param size query string false "S|M|L|XL"
// @Success 200 {array} cell.Cell
// @Failure 400 {object} ErrorResponse
// @Router /api/locker/cells/available [get]
func (h *LockerHandler) ListAvailable(c *gin.Context) {
	var size cell.Size
	if raw := c.Query("size"); raw != "" {
		s, err := cell.ParseSize(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		size = s
	}
	c.JSON(http.StatusOK, h.svc.Available(size))
}

// GetCell 单个格口
// @Summary 单个格口
// @Tags 锁柜
// @Produce json
// @Param id path string true "格口ID（cell-5 或 5）"
// @Success 200 {object} cell.Cell
// @Failure 404 {object} ErrorResponse
// @Router /api/locker/cells/{id} [get]
func (h *LockerHandler) GetCell(c *gin.Context) {
	cl, err := h.svc.Cell(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

// OpenCell 开门
// @Summary 打开指定格口
// @Description 设备确认后格口进入 open；门关闭后由轮询标记 occupied
// @Tags 锁柜
// @Accept json
// @Produce json
// @Param id path string true "格口ID"
// @Param body body OpenRequest false "开门原因"
// @Success 200 {object} locker.OpenResult
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/locker/cells/{id}/open [post]
func (h *LockerHandler) OpenCell(c *gin.Context) {
	var req OpenRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.OpenCell(c.Request.Context(), c.Param("id"), reason(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// OpenAvailable 按尺寸挑选并开门
// @Summary 按尺寸开门
// @Description 请求尺寸无空闲时依次尝试更大尺寸（默认 M）
// @Tags 锁柜
// @Accept json
// @Produce json
// @Param body body OpenAvailableRequest false "尺寸与原因"
// @Success 200 {object} locker.OpenResult
// @Failure 404 {object} ErrorResponse
// @Router /api/locker/cells/open-available [post]
func (h *LockerHandler) OpenAvailable(c *gin.Context) {
	var req OpenAvailableRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var size cell.Size
	if req.Size != "" {
		s, err := cell.ParseSize(req.Size)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		size = s
	}
	res, err := h.svc.OpenAvailable(c.Request.Context(), size, reason(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reserve 预约
// @Summary 预约格口
// @Tags 锁柜
// @Accept json
// @Produce json
// @Param id path string true "格口ID"
// @Param body body ReserveRequest true "订单号"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/locker/cells/{id}/reserve [post]
func (h *LockerHandler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "orderId is required")
		return
	}
	if _, err := h.svc.Reserve(c.Param("id"), req.OrderID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Release 释放
// @Summary 释放格口
// @Tags 锁柜
// @Produce json
// @Param id path string true "格口ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/locker/cells/{id}/release [post]
func (h *LockerHandler) Release(c *gin.Context) {
	if _, err := h.svc.Release(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SetLED 指示灯
// @Summary 设置格口指示灯
// @Tags 锁柜
// @Accept json
// @Produce json
// @Param id path string true "格口ID"
// @Param body body LEDRequest true "off|green|red|blue|blink"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/locker/cells/{id}/led [post]
func (h *LockerHandler) SetLED(c *gin.Context) {
	var req LEDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "color is required")
		return
	}
	if err := h.svc.SetLED(c.Request.Context(), c.Param("id"), req.Color); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Weight 称重
// @Summary 读取格口重量
// @Tags 锁柜
// @Produce json
// @Param id path string true "格口ID"
// @Success 200 {object} WeightResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/locker/cells/{id}/weight [get]
func (h *LockerHandler) Weight(c *gin.Context) {
	w, err := h.svc.Weight(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, WeightResponse{Weight: w})
}
