package serialport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
)

// fakePort 模拟串口：inC 中的每个元素作为一次 Read 的返回，
// 超过 readTimeout 无数据时返回 (0, nil)
type fakePort struct {
	inC         chan []byte
	readTimeout time.Duration
	closeC      chan struct{}
	closeOnce   sync.Once
	closes      atomic.Int32

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
}

func newFakePort() *fakePort {
	return &fakePort{
		inC:         make(chan []byte, 16),
		readTimeout: 20 * time.Millisecond,
		closeC:      make(chan struct{}),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.inC:
		return copy(b, chunk), nil
	case <-p.closeC:
		return 0, io.EOF
	case <-time.After(p.readTimeout):
		return 0, nil
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closes.Add(1)
	p.closeOnce.Do(func() { close(p.closeC) })
	return nil
}

func collectFrames(t *Transport) <-chan *kz004.Frame {
	ch := make(chan *kz004.Frame, 16)
	t.SetOnFrame(func(fr *kz004.Frame) { ch <- fr })
	return ch
}

func waitFrame(t *testing.T, ch <-chan *kz004.Frame) *kz004.Frame {
	t.Helper()
	select {
	case fr := <-ch:
		return fr
	case <-time.After(time.Second):
		t.Fatal("等待帧超时")
		return nil
	}
}

func TestTransport_ReassemblesChunks(t *testing.T) {
	port := newFakePort()
	tr := New(port)
	defer tr.Close()
	frames := collectFrames(tr)

	raw := kz004.Build(0x01, kz004.CmdQueryDoorStatus, []byte{0x04, 0x00})
	port.inC <- []byte{0x00, 0x01} // 噪声
	port.inC <- raw[:2]
	port.inC <- raw[2:5]
	port.inC <- raw[5:]

	fr := waitFrame(t, frames)
	assert.Equal(t, kz004.CmdQueryDoorStatus, fr.Command)
	assert.Equal(t, []byte{0x04, 0x00}, fr.Payload)
}

func TestTransport_SilenceDiscardsPartialFrame(t *testing.T) {
	port := newFakePort()
	var malformed atomic.Int32
	var received atomic.Int32
	tr := New(port, WithMetricsCallbacks(func(n int) { received.Add(int32(n)) }, func() { malformed.Add(1) }))
	defer tr.Close()
	frames := collectFrames(tr)

	first := kz004.Build(0x01, kz004.CmdOpenCell, []byte{0x01})
	second := kz004.Build(0x01, kz004.CmdOpenCell, []byte{0x02})

	// 前半帧之后静默超过一个字节间隔
	port.inC <- first[:4]
	require.Eventually(t, func() bool { return malformed.Load() == 1 }, time.Second, 5*time.Millisecond)

	// 剩余字节不能与前半帧拼接
	port.inC <- first[4:]
	port.inC <- second

	fr := waitFrame(t, frames)
	assert.Equal(t, byte(0x02), fr.Payload[0])
	assert.Equal(t, int32(len(first)+len(second)), received.Load())
}

func TestTransport_FalseHeaderBeforeResponse(t *testing.T) {
	port := newFakePort()
	tr := New(port)
	defer tr.Close()
	frames := collectFrames(tr)

	// 噪声 0xAA 后的字节被当作超长长度，有效应答紧随其后
	resp := kz004.Build(0x01, kz004.CmdQueryDoorStatus, []byte{0x05, 0x00})
	port.inC <- []byte{0xAA, 0xC8}
	port.inC <- resp

	fr := waitFrame(t, frames)
	assert.Equal(t, kz004.CmdQueryDoorStatus, fr.Command)
	assert.Equal(t, []byte{0x05, 0x00}, fr.Payload)
}

func TestTransport_Write(t *testing.T) {
	port := newFakePort()
	tr := New(port)

	raw := kz004.Build(0x01, kz004.CmdOpenCell, []byte{0x03})
	require.NoError(t, tr.Write(raw))
	assert.Equal(t, raw, port.written.Bytes())

	t.Run("写失败包装为TransportError", func(t *testing.T) {
		port.writeErr = errors.New("io failure")
		err := tr.Write(raw)
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "write", te.Op)
		port.writeErr = nil
	})

	t.Run("关闭后写入失败", func(t *testing.T) {
		require.NoError(t, tr.Close())
		err := tr.Write(raw)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestTransport_CloseIdempotent(t *testing.T) {
	port := newFakePort()
	tr := New(port)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, int32(1), port.closes.Load())
	assert.True(t, tr.Closed())

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("读循环未退出")
	}
}

func TestConnectionError(t *testing.T) {
	_, err := Open(Config{Port: "/dev/does-not-exist-locker", BaudRate: 9600})
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "/dev/does-not-exist-locker", ce.Port)
}
