package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Port 串口抽象：读超时返回 (0, nil)，与 go.bug.st/serial 的语义一致
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// ConnectionError 串口设备无法打开（启动期致命错误，模拟模式除外）
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("open serial port %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError 已打开链路上的写失败，按命令上抛给发起方
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrClosed 链路已关闭
var ErrClosed = errors.New("serial transport closed")

// Config 串口参数
type Config struct {
	Port             string
	BaudRate         int
	InterByteTimeout time.Duration
}

// Transport 串口传输层：写原始帧，读循环重组完整帧后交给监听者
type Transport struct {
	port    Port
	name    string
	logger  *zap.Logger
	decoder *kz004.StreamDecoder

	writeMu sync.Mutex
	onFrame atomic.Value // func(*kz004.Frame)

	// 可选指标回调
	onBytes     func(n int)
	onMalformed func()

	closed int32
	doneC  chan struct{}
	once   sync.Once
}

// Option Transport 可选项
type Option func(*Transport)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithName 设置日志中显示的端口名
func WithName(name string) Option {
	return func(t *Transport) { t.name = name }
}

// WithMetricsCallbacks 设置收字节数与畸形帧回调
func WithMetricsCallbacks(onBytes func(int), onMalformed func()) Option {
	return func(t *Transport) { t.onBytes, t.onMalformed = onBytes, onMalformed }
}

// Open 打开物理串口（8N1）并启动读循环
func Open(cfg Config, opts ...Option) (*Transport, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 9600
	}
	if cfg.InterByteTimeout <= 0 {
		cfg.InterByteTimeout = 100 * time.Millisecond
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}
	// 读超时即字节间隔超时：超时后半帧作废
	if err := port.SetReadTimeout(cfg.InterByteTimeout); err != nil {
		_ = port.Close()
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}
	opts = append([]Option{WithName(cfg.Port)}, opts...)
	return New(port, opts...), nil
}

// New 包装任意 Port 并启动读循环
func New(port Port, opts ...Option) *Transport {
	t := &Transport{
		port:    port,
		logger:  zap.NewNop(),
		decoder: kz004.NewStreamDecoder(),
		doneC:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.readLoop()
	return t
}

// SetOnFrame 安装帧回调（收到完整且校验通过的帧时触发，在读循环中同步调用）
func (t *Transport) SetOnFrame(fn func(*kz004.Frame)) { t.onFrame.Store(fn) }

// Write 写入一帧原始字节
func (t *Transport) Write(frame []byte) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return &TransportError{Op: "write", Err: ErrClosed}
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	n, err := t.port.Write(frame)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if n != len(frame) {
		return &TransportError{Op: "write", Err: io.ErrShortWrite}
	}
	return nil
}

// Close 关闭串口（幂等）
func (t *Transport) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	return t.port.Close()
}

// Done 读循环退出时关闭
func (t *Transport) Done() <-chan struct{} { return t.doneC }

// Closed 链路是否已关闭
func (t *Transport) Closed() bool { return atomic.LoadInt32(&t.closed) == 1 }

func (t *Transport) readLoop() {
	defer t.once.Do(func() { close(t.doneC) })

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			if t.onBytes != nil {
				t.onBytes(n)
			}
			before := t.decoder.Malformed()
			frames := t.decoder.Feed(buf[:n])
			t.reportMalformed(t.decoder.Malformed() - before)
			for _, fr := range frames {
				t.dispatch(fr)
			}
		} else if err == nil {
			// 字节间隔超时：源端中途静默，半帧作废
			before := t.decoder.Malformed()
			frames, dropped := t.decoder.Expire()
			if dropped > 0 {
				t.logger.Debug("partial frame expired",
					zap.String("port", t.name),
					zap.Int("bytes", dropped))
			}
			t.reportMalformed(t.decoder.Malformed() - before)
			for _, fr := range frames {
				t.dispatch(fr)
			}
		}
		if err != nil {
			if atomic.LoadInt32(&t.closed) == 0 {
				t.logger.Error("serial read failed", zap.String("port", t.name), zap.Error(err))
			}
			return
		}
	}
}

func (t *Transport) reportMalformed(n int) {
	if n <= 0 {
		return
	}
	t.logger.Debug("malformed frame discarded", zap.String("port", t.name), zap.Int("count", n))
	if t.onMalformed == nil {
		return
	}
	for i := 0; i < n; i++ {
		t.onMalformed()
	}
}

func (t *Transport) dispatch(fr *kz004.Frame) {
	fn, _ := t.onFrame.Load().(func(*kz004.Frame))
	if fn == nil {
		t.logger.Debug("frame dropped: no listener", zap.Stringer("frame", fr))
		return
	}
	fn(fr)
}
