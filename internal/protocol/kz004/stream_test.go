package kz004

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDecoder_HalfAndStickyPackets(t *testing.T) {
	d := NewStreamDecoder()
	a := Build(0x01, CmdQueryDoorStatus, []byte{0x01, 0x00})
	b := Build(0x01, CmdQueryWeight, []byte{0x02, 0x10})

	// 半包
	assert.Empty(t, d.Feed(a[:3]))
	assert.Equal(t, 3, d.Buffered())

	// 补齐 a 并带上 b 的前半
	frames := d.Feed(append(append([]byte(nil), a[3:]...), b[:4]...))
	require.Len(t, frames, 1)
	assert.Equal(t, CmdQueryDoorStatus, frames[0].Command)

	frames = d.Feed(b[4:])
	require.Len(t, frames, 1)
	assert.Equal(t, CmdQueryWeight, frames[0].Command)
	assert.Equal(t, 0, d.Buffered())
}

func TestStreamDecoder_ByteByByte(t *testing.T) {
	d := NewStreamDecoder()
	raw := Build(0x01, CmdOpenCell, []byte{0x07})
	var got []*Frame
	for _, b := range raw {
		got = append(got, d.Feed([]byte{b})...)
	}
	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x07}, got[0].Payload)
}

func TestStreamDecoder_GarbagePrefix(t *testing.T) {
	d := NewStreamDecoder()
	raw := Build(0x01, CmdOpenCell, []byte{0x03})

	t.Run("无帧头噪声", func(t *testing.T) {
		frames := d.Feed(append([]byte{0x00, 0x13, 0x37}, raw...))
		require.Len(t, frames, 1)
		assert.Equal(t, byte(0x03), frames[0].Payload[0])
	})

	t.Run("伪帧头噪声", func(t *testing.T) {
		// 0xAA 后跟随一个看似合法的长度，但内容不是有效帧
		noise := []byte{0xAA, 0x01, 0x01, 0x09}
		frames := d.Feed(append(noise, raw...))
		require.Len(t, frames, 1)
		assert.Equal(t, CmdOpenCell, frames[0].Command)
		assert.Greater(t, d.Malformed(), 0)
	})
}

func TestStreamDecoder_ExpireDiscardsPartial(t *testing.T) {
	d := NewStreamDecoder()
	raw := Build(0x01, CmdQueryDoorStatus, []byte{0xFF, 0xFF})

	assert.Empty(t, d.Feed(raw[:5]))
	recovered, dropped := d.Expire()
	assert.Empty(t, recovered)
	assert.Equal(t, 5, dropped)
	assert.Equal(t, 0, d.Buffered())
	assert.Equal(t, 1, d.Malformed())

	// 超时后新帧可正常识别
	frames := d.Feed(raw)
	require.Len(t, frames, 1)

	// 空缓冲超时不计畸形
	recovered, dropped = d.Expire()
	assert.Empty(t, recovered)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 1, d.Malformed())
}

func TestStreamDecoder_FalseHeaderWithLongLength(t *testing.T) {
	valid := Build(0x01, CmdQueryDoorStatus, []byte{0x05, 0x00})

	t.Run("静默后恢复伪帧头之后的有效帧", func(t *testing.T) {
		d := NewStreamDecoder()
		// 0xAA 0xC8 之后紧跟有效帧：第三字节恰为有效帧的帧头，被当作长度 0xAA
		stream := append([]byte{0xAA, 0xC8}, valid...)
		frames := d.Feed(stream[:3])
		assert.Empty(t, frames)
		frames = d.Feed(stream[3:])
		// 有效帧完整到达即被识别，无需等待静默
		require.Len(t, frames, 1)
		assert.Equal(t, []byte{0x05, 0x00}, frames[0].Payload)
		assert.Equal(t, 0, d.Buffered())
	})

	t.Run("有效帧之后仍有残留半帧", func(t *testing.T) {
		d := NewStreamDecoder()
		partial := Build(0x01, CmdQueryWeight, []byte{0x01, 0x02})[:4]
		stream := append(append([]byte{0xAA, 0xFE}, valid...), partial...)
		frames := d.Feed(stream)
		require.Len(t, frames, 1)
		assert.Equal(t, CmdQueryDoorStatus, frames[0].Command)

		recovered, dropped := d.Expire()
		assert.Empty(t, recovered)
		assert.Equal(t, len(partial), dropped)
		assert.Equal(t, 0, d.Buffered())
	})
}

func TestStreamDecoder_ExpireRecoversBufferedFrame(t *testing.T) {
	d := NewStreamDecoder()
	valid := Build(0x01, CmdOpenCell, []byte{0x04})
	// 直接构造缓冲：伪帧头 + 有效帧，绕过 Feed 的提前识别
	d.buf = append(append(d.buf, 0xAA, 0x01, 0xC8), valid...)

	recovered, dropped := d.Expire()
	require.Len(t, recovered, 1)
	assert.Equal(t, CmdOpenCell, recovered[0].Command)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, 0, d.Buffered())
}

func TestStreamDecoder_CorruptedFrameDropped(t *testing.T) {
	d := NewStreamDecoder()
	bad := Build(0x01, CmdOpenCell, []byte{0x01})
	bad[4] ^= 0xFF
	good := Build(0x01, CmdOpenCell, []byte{0x02})

	frames := d.Feed(append(bad, good...))
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x02), frames[0].Payload[0])
}
