package kz004

import (
	"encoding/binary"
	"fmt"
)

// checksum 异或校验：从地址字节到最后一个载荷字节（含）
func checksum(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}

// Build 构造一帧下行命令（与 Parse 对应）
func Build(address, command byte, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+MinFrameLen)
	buf = append(buf, Header, address, byte(len(payload)+1), command)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf[1:]), Tail)
	return buf
}

// Parse 解析一帧（严格校验：帧头、帧尾、长度字段、异或校验）
func Parse(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameLen {
		return nil, malformed("short frame: %d bytes", len(raw))
	}
	if raw[0] != Header {
		return nil, malformed("bad header 0x%02x", raw[0])
	}
	last := len(raw) - 1
	if raw[last] != Tail {
		return nil, malformed("bad tail 0x%02x", raw[last])
	}
	length := int(raw[2])
	if length < 1 || length+5 != len(raw) {
		return nil, malformed("length field %d does not match frame size %d", length, len(raw))
	}
	want := checksum(raw[1 : last-1])
	if got := raw[last-1]; got != want {
		return nil, malformed("checksum mismatch: got 0x%02x want 0x%02x", got, want)
	}

	payload := make([]byte, length-1)
	copy(payload, raw[4:4+length-1])
	return &Frame{
		Address:  raw[1],
		Length:   raw[2],
		Command:  raw[3],
		Payload:  payload,
		Checksum: raw[last-1],
	}, nil
}

// Bytes 重新编码该帧
func (f *Frame) Bytes() []byte {
	return Build(f.Address, f.Command, f.Payload)
}

func (f *Frame) String() string {
	return fmt.Sprintf("addr=0x%02x cmd=%s payload=% x", f.Address, CommandName(f.Command), f.Payload)
}

// DecodeDoorStatus 解析门状态位图：bit0 对应 1 号格口，1 表示门开
// 只解码 count 个格口，多余的位忽略；字节不足返回 TRUNCATED
func DecodeDoorStatus(payload []byte, count int) ([]bool, error) {
	need := (count + 7) / 8
	if len(payload) < need {
		return nil, truncated("door status needs %d bytes for %d cells, got %d", need, count, len(payload))
	}
	states := make([]bool, count)
	for i := 0; i < count; i++ {
		states[i] = payload[i/8]&(1<<(i%8)) != 0
	}
	return states, nil
}

// EncodeDoorStatus 将门状态编码为位图（模拟器与测试使用）
func EncodeDoorStatus(states []bool) []byte {
	out := make([]byte, (len(states)+7)/8)
	for i, open := range states {
		if open {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// DecodeWeight 解析称重响应：前两字节大端，单位克
func DecodeWeight(payload []byte) (int, error) {
	if len(payload) < 2 {
		return 0, truncated("weight needs 2 bytes, got %d", len(payload))
	}
	return int(binary.BigEndian.Uint16(payload[:2])), nil
}

// EncodeWeight 编码称重值（模拟器与测试使用）
func EncodeWeight(grams int) []byte {
	if grams < 0 {
		grams = 0
	}
	if grams > 0xFFFF {
		grams = 0xFFFF
	}
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(grams))
	return out
}

// DecodeFirmware 从状态查询响应中取固件版本（major.minor），不足两字节返回空串
func DecodeFirmware(payload []byte) string {
	if len(payload) < 2 {
		return ""
	}
	return fmt.Sprintf("%d.%d", payload[0], payload[1])
}
