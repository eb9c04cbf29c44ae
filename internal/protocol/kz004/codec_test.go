package kz004

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Layout(t *testing.T) {
	raw := Build(0x01, CmdOpenCell, []byte{0x05})

	// AA 01 02 02 05 xor 55
	want := []byte{0xAA, 0x01, 0x02, 0x02, 0x05, 0x01 ^ 0x02 ^ 0x02 ^ 0x05, 0x55}
	assert.Equal(t, want, raw)
}

func TestBuild_EmptyPayload(t *testing.T) {
	raw := Build(0x01, CmdQueryDoorStatus, nil)
	assert.Len(t, raw, MinFrameLen)
	assert.Equal(t, byte(1), raw[2], "len 字段只包含命令字节")
	assert.Equal(t, byte(0x01^0x01^0x11), raw[4])
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		addr    byte
		cmd     byte
		payload []byte
	}{
		{"空载荷", 0x01, CmdQueryDoorStatus, nil},
		{"单字节", 0x01, CmdOpenCell, []byte{16}},
		{"LED", 0x02, CmdControlLED, []byte{3, 0x01}},
		{"广播地址", BroadcastAddr, CmdQueryStatus, []byte{0x00}},
		{"载荷含帧头帧尾字节", 0x01, CmdQueryWeight, []byte{0xAA, 0x55, 0xAA}},
		{"最大载荷", 0x7F, CmdQueryAllCells, bytes.Repeat([]byte{0x5A}, MaxPayloadLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, err := Parse(Build(tt.addr, tt.cmd, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.addr, fr.Address)
			assert.Equal(t, tt.cmd, fr.Command)
			assert.Equal(t, len(tt.payload), len(fr.Payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, fr.Payload)
			}
		})
	}
}

func TestParse_AllAddressCommandPairs(t *testing.T) {
	payload := []byte{0x10, 0x20}
	for a := 0; a < 256; a++ {
		for c := 0; c < 256; c += 7 {
			fr, err := Parse(Build(byte(a), byte(c), payload))
			if err != nil {
				t.Fatalf("addr=%d cmd=%d: %v", a, c, err)
			}
			if fr.Address != byte(a) || fr.Command != byte(c) || !bytes.Equal(fr.Payload, payload) {
				t.Fatalf("round trip mismatch: %+v", fr)
			}
		}
	}
}

func TestParse_SingleBitFlipIsMalformed(t *testing.T) {
	raw := Build(0x01, CmdQueryWeight, []byte{0x03, 0x7F, 0x80})

	// 帧头与帧尾之外的每一位翻转都必须被拒绝
	for i := 1; i < len(raw)-1; i++ {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 1 << bit
			_, err := Parse(flipped)
			require.Errorf(t, err, "byte %d bit %d flip accepted", i, bit)
			assert.True(t, errors.Is(err, ErrMalformed), "byte %d bit %d: %v", i, bit, err)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	good := Build(0x01, CmdOpenCell, []byte{0x01})

	t.Run("帧头错误", func(t *testing.T) {
		raw := append([]byte(nil), good...)
		raw[0] = 0x00
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("帧尾错误", func(t *testing.T) {
		raw := append([]byte(nil), good...)
		raw[len(raw)-1] = 0x00
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("过短", func(t *testing.T) {
		_, err := Parse(good[:4])
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("长度不符", func(t *testing.T) {
		raw := append(append([]byte(nil), good[:len(good)-1]...), 0x00, Tail)
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	var pe *ParseError
	_, err := Parse(good[:3])
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindMalformed, pe.Kind)
	assert.False(t, errors.Is(err, ErrTruncated))
}

func TestDecodeDoorStatus(t *testing.T) {
	t.Run("按位解码", func(t *testing.T) {
		// 1号、3号、16号门开
		states, err := DecodeDoorStatus([]byte{0b0000_0101, 0b1000_0000}, 16)
		require.NoError(t, err)
		require.Len(t, states, 16)
		for i, open := range states {
			want := i == 0 || i == 2 || i == 15
			assert.Equalf(t, want, open, "cell %d", i+1)
		}
	})

	t.Run("多余位忽略", func(t *testing.T) {
		states, err := DecodeDoorStatus([]byte{0xFF, 0xFF, 0xFF}, 10)
		require.NoError(t, err)
		assert.Len(t, states, 10)
	})

	t.Run("字节不足", func(t *testing.T) {
		_, err := DecodeDoorStatus([]byte{0x00}, 16)
		assert.ErrorIs(t, err, ErrTruncated)
		assert.NotErrorIs(t, err, ErrMalformed)
	})

	t.Run("编解码互逆", func(t *testing.T) {
		in := []bool{true, false, false, true, false, true, true, false, false, true, true}
		out, err := DecodeDoorStatus(EncodeDoorStatus(in), len(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestDecodeWeight(t *testing.T) {
	g, err := DecodeWeight([]byte{0x12, 0x34, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, 0x1234, g)

	_, err = DecodeWeight([]byte{0x01})
	assert.ErrorIs(t, err, ErrTruncated)

	g, err = DecodeWeight(EncodeWeight(2750))
	require.NoError(t, err)
	assert.Equal(t, 2750, g)
}

func TestDecodeFirmware(t *testing.T) {
	assert.Equal(t, "1.4", DecodeFirmware([]byte{1, 4, 0}))
	assert.Equal(t, "", DecodeFirmware([]byte{1}))
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "open_cell", CommandName(CmdOpenCell))
	assert.Equal(t, "0x7e", CommandName(0x7E))
}
