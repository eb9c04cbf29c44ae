package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
)

// chanLink 把写出的帧投递到通道，便于测试观察发送顺序
type chanLink struct {
	writes chan *kz004.Frame
	err    error
}

func newChanLink() *chanLink { return &chanLink{writes: make(chan *kz004.Frame, 8)} }

func (l *chanLink) Write(raw []byte) error {
	if l.err != nil {
		return l.err
	}
	fr, err := kz004.Parse(raw)
	if err != nil {
		return err
	}
	l.writes <- fr
	return nil
}

func reply(cmd byte, payload ...byte) *kz004.Frame {
	return &kz004.Frame{Address: 0x01, Command: cmd, Payload: payload}
}

type countingObserver struct {
	mu     sync.Mutex
	done   map[string]int
	strays int
}

func (o *countingObserver) CommandDone(_ byte, result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done == nil {
		o.done = map[string]int{}
	}
	o.done[result]++
}

func (o *countingObserver) StrayFrame(byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.strays++
}

func TestCorrelator_SingleInFlight(t *testing.T) {
	link := newChanLink()
	c := New(link, 0x01)

	type result struct {
		fr  *kz004.Frame
		err error
	}
	firstC := make(chan result, 1)
	secondC := make(chan result, 1)

	go func() {
		fr, err := c.SendCommand(context.Background(), kz004.CmdOpenCell, []byte{5}, time.Second)
		firstC <- result{fr, err}
	}()
	first := <-link.writes
	assert.Equal(t, kz004.CmdOpenCell, first.Command)

	go func() {
		fr, err := c.SendCommand(context.Background(), kz004.CmdQueryDoorStatus, nil, time.Second)
		secondC <- result{fr, err}
	}()

	// 第一条未完成前，第二条不得写出
	select {
	case fr := <-link.writes:
		t.Fatalf("第二条命令提前写出: %v", fr)
	case <-time.After(80 * time.Millisecond):
	}

	require.True(t, c.HandleFrame(reply(kz004.CmdOpenCell, 0x00)))
	r1 := <-firstC
	require.NoError(t, r1.err)
	assert.Equal(t, kz004.CmdOpenCell, r1.fr.Command)

	second := <-link.writes
	assert.Equal(t, kz004.CmdQueryDoorStatus, second.Command)
	require.True(t, c.HandleFrame(reply(kz004.CmdQueryDoorStatus, 0x00, 0x00)))
	r2 := <-secondC
	require.NoError(t, r2.err)
	assert.Equal(t, []byte{0x00, 0x00}, r2.fr.Payload)
}

func TestCorrelator_TimeoutRecovery(t *testing.T) {
	link := newChanLink()
	obs := &countingObserver{}
	c := New(link, 0x01, WithObserver(obs))

	_, err := c.SendCommand(context.Background(), kz004.CmdQueryWeight, []byte{1}, 30*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandTimeout)
	assert.NotErrorIs(t, err, kz004.ErrMalformed)
	var te *CommandTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, kz004.CmdQueryWeight, te.Command)
	<-link.writes
	assert.False(t, c.Busy(), "超时后槽位应释放")

	// 迟到响应不能被配给任何命令
	assert.False(t, c.HandleFrame(reply(kz004.CmdQueryWeight, 0x01, 0x00)))

	// 后续无关命令仍然成功
	go func() {
		fr := <-link.writes
		c.HandleFrame(reply(fr.Command, 1, 4))
	}()
	fr, err := c.SendCommand(context.Background(), kz004.CmdQueryStatus, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1.4", kz004.DecodeFirmware(fr.Payload))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.done["timeout"])
	assert.Equal(t, 1, obs.done["ok"])
	assert.Equal(t, 1, obs.strays)
}

func TestCorrelator_MismatchedCommandIgnored(t *testing.T) {
	link := newChanLink()
	c := New(link, 0x01)

	go func() {
		<-link.writes
		// 命令码不同的帧不能完成等待
		c.HandleFrame(reply(kz004.CmdQueryDoorStatus, 0xFF, 0xFF))
	}()
	_, err := c.SendCommand(context.Background(), kz004.CmdOpenCell, []byte{2}, 60*time.Millisecond)
	assert.ErrorIs(t, err, ErrCommandTimeout)
}

func TestCorrelator_StrayFrameWithoutPending(t *testing.T) {
	c := New(newChanLink(), 0x01)
	assert.False(t, c.HandleFrame(reply(kz004.CmdOpenCell)))
	assert.False(t, c.Busy())
}

func TestCorrelator_TransportError(t *testing.T) {
	link := newChanLink()
	link.err = errors.New("port gone")
	c := New(link, 0x01)

	_, err := c.SendCommand(context.Background(), kz004.CmdOpenCell, []byte{1}, time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommandTimeout)
	assert.False(t, c.Busy())
}

func TestCorrelator_QueuedCallerCanGiveUp(t *testing.T) {
	link := newChanLink()
	c := New(link, 0x01)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SendCommand(context.Background(), kz004.CmdOpenCell, []byte{1}, 200*time.Millisecond)
	}()
	<-link.writes

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.SendCommand(ctx, kz004.CmdQueryStatus, nil, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-done
	select {
	case fr := <-link.writes:
		t.Fatalf("放弃排队的命令不应写出: %v", fr)
	default:
	}
}

func TestCorrelator_MinGap(t *testing.T) {
	link := newChanLink()
	c := New(link, 0x01, WithMinGap(40*time.Millisecond))

	go func() {
		for fr := range link.writes {
			c.HandleFrame(reply(fr.Command))
		}
	}()
	defer close(link.writes)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.SendCommand(context.Background(), kz004.CmdQueryStatus, nil, time.Second)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}
