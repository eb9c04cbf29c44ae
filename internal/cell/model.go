package cell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Size 格口尺寸（S < M < L < XL）
type Size string

const (
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// SizeOrder 从小到大的尺寸顺序
var SizeOrder = []Size{SizeS, SizeM, SizeL, SizeXL}

// ParseSize 解析尺寸（大小写不敏感）
func ParseSize(s string) (Size, error) {
	switch Size(strings.ToUpper(strings.TrimSpace(s))) {
	case SizeS:
		return SizeS, nil
	case SizeM:
		return SizeM, nil
	case SizeL:
		return SizeL, nil
	case SizeXL:
		return SizeXL, nil
	}
	return "", fmt.Errorf("invalid cell size %q", s)
}

// Rank 尺寸序号，未知尺寸返回 -1
func (s Size) Rank() int {
	for i, v := range SizeOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Larger 返回比 s 更大的尺寸（从小到大）
func (s Size) Larger() []Size {
	r := s.Rank()
	if r < 0 {
		return nil
	}
	return SizeOrder[r+1:]
}

// Status 格口状态
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusReserved  Status = "reserved"
	StatusOpen      Status = "open"
	StatusError     Status = "error"
)

// Cell 格口快照
// 不变量：Status==open 时 DoorOpen 必为 true；reserved 时 ReservedFor 非空
type Cell struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Size        Size   `json:"size"`
	Status      Status `json:"status"`
	DoorOpen    bool   `json:"doorOpen"`
	HasItems    bool   `json:"hasItems"`
	Weight      *int   `json:"weight,omitempty"`
	ReservedFor string `json:"orderId,omitempty"`
}

// DoorEvent 门状态边沿事件（仅在状态变化时产生）
type DoorEvent struct {
	CellID     string    `json:"cellId"`
	CellNumber int       `json:"cellNumber"`
	DoorOpen   bool      `json:"doorOpen"`
	Timestamp  time.Time `json:"timestamp"`
}

// IDFor 由物理编号生成格口ID
func IDFor(number int) string {
	return "cell-" + strconv.Itoa(number)
}

var (
	// ErrCellNotFound 格口不存在
	ErrCellNotFound = errors.New("cell not found")
	// ErrNoAvailableCells 没有可用格口
	ErrNoAvailableCells = errors.New("no available cells")
	// ErrPreconditionFailed 状态前置条件不满足（如重复预约）
	ErrPreconditionFailed = errors.New("precondition failed")
)

// PreconditionError 带上下文的前置条件错误，errors.Is(err, ErrPreconditionFailed) 为真
type PreconditionError struct {
	CellID string
	Status Status
	Op     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Op, e.CellID, e.Status)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionFailed }
