package locker

import (
	"io"
	"sync"
	"time"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
)

// fakeDevice 模拟 KZ004 控制板：解析写入的命令帧并回应
type fakeDevice struct {
	address byte
	count   int

	mu      sync.Mutex
	doors   []bool
	weights map[int]int
	leds    map[int]byte
	opened  []int
	silent  map[byte]bool // 这些命令不回应

	rx     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeDevice(count int) *fakeDevice {
	return &fakeDevice{
		address: kz004.DefaultAddress,
		count:   count,
		doors:   make([]bool, count),
		weights: map[int]int{},
		leds:    map[int]byte{},
		silent:  map[byte]bool{},
		rx:      make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	select {
	case b := <-d.rx:
		return copy(p, b), nil
	case <-d.closed:
		return 0, io.EOF
	case <-time.After(20 * time.Millisecond):
		return 0, nil
	}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	fr, err := kz004.Parse(p)
	if err != nil {
		return len(p), nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.silent[fr.Command] {
		return len(p), nil
	}
	var payload []byte
	switch fr.Command {
	case kz004.CmdQueryStatus:
		payload = []byte{2, 3}
	case kz004.CmdOpenCell:
		n := int(fr.Payload[0])
		d.opened = append(d.opened, n)
		d.doors[n-1] = true
		payload = []byte{fr.Payload[0], 0x00}
	case kz004.CmdControlLED:
		d.leds[int(fr.Payload[0])] = fr.Payload[1]
		payload = []byte{0x00}
	case kz004.CmdQueryWeight:
		payload = kz004.EncodeWeight(d.weights[int(fr.Payload[0])])
	case kz004.CmdQueryDoorStatus:
		payload = kz004.EncodeDoorStatus(d.doors)
	default:
		return len(p), nil
	}
	d.rx <- kz004.Build(d.address, fr.Command, payload)
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) setDoor(n int, open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doors[n-1] = open
}

func (d *fakeDevice) opener() PortOpener {
	return func(_ serialport.Config, opts ...serialport.Option) (*serialport.Transport, error) {
		return serialport.New(d, opts...), nil
	}
}
