package kz004

import "bytes"

// StreamDecoder 处理半包/粘包的流式解码器
// 串口按任意分块交付字节，这里累积到完整的 header…tail 后才输出帧
type StreamDecoder struct {
	buf []byte
	// 统计：因校验失败或超时被丢弃的候选帧数
	malformed int
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{buf: make([]byte, 0, MaxFrameLen)}
}

// Feed 追加数据并尽可能解出多帧
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	if len(p) == 0 {
		return nil
	}
	d.buf = append(d.buf, p...)
	return d.scan()
}

// scan 从缓冲头部开始解帧，遇到不完整的候选帧时返回
func (d *StreamDecoder) scan() []*Frame {
	var frames []*Frame
	for {
		start := bytes.IndexByte(d.buf, Header)
		if start < 0 {
			// 无帧头，全部是噪声
			d.buf = d.buf[:0]
			return frames
		}
		if start > 0 {
			// 丢弃帧头之前的无效前缀
			d.buf = d.buf[start:]
		}
		if len(d.buf) < 3 {
			// 还需要长度字段
			return frames
		}
		length := int(d.buf[2])
		if length < 1 {
			// 长度非法，滑动1字节重新同步
			d.malformed++
			d.buf = d.buf[1:]
			continue
		}
		total := length + 5
		if len(d.buf) < total {
			// 半包；若后面已有一个完整有效的帧，说明当前帧头是噪声
			if i := d.laterFrame(); i > 0 {
				d.malformed++
				d.buf = d.buf[i:]
				continue
			}
			return frames
		}

		fr, err := Parse(d.buf[:total])
		if err != nil {
			// 候选帧无效：可能是载荷中的 0xAA 被误认作帧头，滑动1字节继续
			d.malformed++
			d.buf = d.buf[1:]
			continue
		}
		frames = append(frames, fr)
		d.buf = d.buf[total:]
		if len(d.buf) == 0 {
			return frames
		}
	}
}

// laterFrame 在当前帧头之后查找已完整到达且校验通过的帧，返回其偏移，没有返回 0
func (d *StreamDecoder) laterFrame() int {
	for i := 1; i+MinFrameLen <= len(d.buf); i++ {
		if d.buf[i] != Header {
			continue
		}
		total := int(d.buf[i+2]) + 5
		if i+total > len(d.buf) {
			continue
		}
		if _, err := Parse(d.buf[i : i+total]); err == nil {
			return i
		}
	}
	return 0
}

// Expire 在一个字节间隔超时内未收到新数据时调用。
// 当前候选帧头作废，向后继续扫描，取出其后已完整到达的帧；仍不完整的残留才丢弃。
// 返回恢复出的帧与丢弃的字节数。
func (d *StreamDecoder) Expire() ([]*Frame, int) {
	var frames []*Frame
	dropped := 0
	for len(d.buf) > 0 {
		before := len(d.buf)
		d.malformed++
		d.buf = d.buf[1:]
		got := d.scan()
		consumed := 0
		for _, fr := range got {
			consumed += len(fr.Payload) + MinFrameLen
		}
		dropped += before - len(d.buf) - consumed
		frames = append(frames, got...)
	}
	return frames, dropped
}

// Buffered 当前缓冲的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Malformed 累计丢弃的畸形候选帧数
func (d *StreamDecoder) Malformed() int { return d.malformed }
