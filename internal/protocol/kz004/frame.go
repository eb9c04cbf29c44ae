package kz004

import (
	"errors"
	"fmt"
)

// Frame KZ004 协议帧
// 格式：header(1)=0xAA | addr(1) | len(1)=len(payload)+1 | cmd(1) | payload(..) | xor(1) | tail(1)=0x55
type Frame struct {
	Address  byte
	Length   byte
	Command  byte
	Payload  []byte
	Checksum byte
}

const (
	Header         byte = 0xAA
	Tail           byte = 0x55
	BroadcastAddr  byte = 0xFF
	DefaultAddress byte = 0x01

	// 最短帧：header+addr+len+cmd+xor+tail
	MinFrameLen = 6
	// len 字段为单字节，载荷最多 254 字节
	MaxPayloadLen = 0xFF - 1
	MaxFrameLen   = MaxPayloadLen + MinFrameLen
)

// 命令码（KZ004 驱动接口文档）
const (
	CmdQueryStatus     byte = 0x01
	CmdOpenCell        byte = 0x02
	CmdQueryCell       byte = 0x03
	CmdControlLED      byte = 0x04
	CmdSetAddress      byte = 0x05
	CmdQueryAllCells   byte = 0x10
	CmdQueryDoorStatus byte = 0x11
	CmdControlRelay    byte = 0x12
	CmdQueryWeight     byte = 0x20
	CmdQueryPresence   byte = 0x21
)

var commandNames = map[byte]string{
	CmdQueryStatus:     "query_status",
	CmdOpenCell:        "open_cell",
	CmdQueryCell:       "query_cell",
	CmdControlLED:      "control_led",
	CmdSetAddress:      "set_address",
	CmdQueryAllCells:   "query_all_cells",
	CmdQueryDoorStatus: "query_door_status",
	CmdControlRelay:    "control_relay",
	CmdQueryWeight:     "query_weight",
	CmdQueryPresence:   "query_presence",
}

// CommandName 返回命令码的可读名称（用于日志与指标标签）
func CommandName(cmd byte) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", cmd)
}

// ErrorKind 解析错误类别
type ErrorKind string

const (
	KindMalformed ErrorKind = "MALFORMED"
	KindTruncated ErrorKind = "TRUNCATED"
)

var (
	// ErrMalformed 帧头/帧尾/长度/校验不匹配
	ErrMalformed = errors.New("malformed frame")
	// ErrTruncated 载荷字节数不足
	ErrTruncated = errors.New("truncated payload")
)

// ParseError 解析错误，可用 errors.Is 与 ErrMalformed/ErrTruncated 比较
type ParseError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("kz004 %s: %s", e.Kind, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == KindMalformed
	case ErrTruncated:
		return e.Kind == KindTruncated
	}
	return false
}

func malformed(format string, args ...any) error {
	return &ParseError{Kind: KindMalformed, Reason: fmt.Sprintf(format, args...)}
}

func truncated(format string, args ...any) error {
	return &ParseError{Kind: KindTruncated, Reason: fmt.Sprintf(format, args...)}
}
