package locker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/locker-gateway/internal/cell"
	"github.com/taoyao-code/locker-gateway/internal/outbound"
	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
)

// stubDriver 可控的后端
type stubDriver struct {
	connected bool
	openErr   error
	opened    []int
	led       map[int]LEDColor
	weight    int
}

func (d *stubDriver) Connect(context.Context) error { d.connected = true; return nil }
func (d *stubDriver) Close() error                  { d.connected = false; return nil }
func (d *stubDriver) Info() DeviceInfo {
	return DeviceInfo{Mode: "stub", Connected: d.connected, Address: 0x01, FirmwareVersion: "9.9"}
}
func (d *stubDriver) OpenCell(_ context.Context, n int) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opened = append(d.opened, n)
	return nil
}
func (d *stubDriver) SetLED(_ context.Context, n int, c LEDColor) error {
	if d.led == nil {
		d.led = map[int]LEDColor{}
	}
	d.led[n] = c
	return nil
}
func (d *stubDriver) ReadWeight(context.Context, int) (int, error) { return d.weight, nil }
func (d *stubDriver) Run(ctx context.Context) error                { <-ctx.Done(); return nil }

func newTestService(drv Driver) (*Service, *cell.Registry, chan cell.DoorEvent) {
	reg := cell.NewRegistry(cell.DefaultLayout())
	events := make(chan cell.DoorEvent, 16)
	return NewService(drv, reg, events, 0, nil, nil), reg, events
}

func TestService_Status(t *testing.T) {
	svc, _, _ := newTestService(&stubDriver{connected: true})
	st := svc.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, "9.9", st.FirmwareVersion)
	assert.Equal(t, 16, st.TotalCells)
	assert.Len(t, st.Cells, 16)
}

func TestService_OpenCell(t *testing.T) {
	t.Run("成功后标记打开并发出事件", func(t *testing.T) {
		drv := &stubDriver{connected: true}
		svc, reg, events := newTestService(drv)
		res, err := svc.OpenCell(context.Background(), "5", "courier")
		require.NoError(t, err)
		assert.Equal(t, OpenResult{Success: true, CellID: "cell-5", CellNumber: 5, Timeout: 60}, res)
		assert.Equal(t, []int{5}, drv.opened)

		c, _ := reg.Get("cell-5")
		assert.Equal(t, cell.StatusOpen, c.Status)
		assert.True(t, c.DoorOpen)
		ev := <-events
		assert.Equal(t, "cell-5", ev.CellID)
	})

	t.Run("硬件失败状态不变", func(t *testing.T) {
		timeout := &outbound.CommandTimeoutError{Command: kz004.CmdOpenCell}
		svc, reg, events := newTestService(&stubDriver{connected: true, openErr: timeout})
		_, err := svc.OpenCell(context.Background(), "cell-3", "")
		assert.ErrorIs(t, err, outbound.ErrCommandTimeout)

		c, _ := reg.Get("cell-3")
		assert.Equal(t, cell.StatusAvailable, c.Status)
		assert.False(t, c.DoorOpen)
		assert.Empty(t, drain(events))
	})

	t.Run("未连接", func(t *testing.T) {
		svc, _, _ := newTestService(&stubDriver{})
		_, err := svc.OpenCell(context.Background(), "cell-1", "")
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("格口不存在", func(t *testing.T) {
		svc, _, _ := newTestService(&stubDriver{connected: true})
		_, err := svc.OpenCell(context.Background(), "cell-77", "")
		assert.ErrorIs(t, err, cell.ErrCellNotFound)
	})
}

func TestService_OpenAvailableEscalates(t *testing.T) {
	drv := &stubDriver{connected: true}
	svc, reg, _ := newTestService(drv)
	for _, n := range []int{1, 2, 3, 4, 5, 6} {
		_, err := reg.MarkOccupied(cell.IDFor(n))
		require.NoError(t, err)
	}

	res, err := svc.OpenAvailable(context.Background(), cell.SizeS, "")
	require.NoError(t, err)
	assert.Equal(t, 7, res.CellNumber, "S 与 M 已满，升级到 L")

	for n := 8; n <= 16; n++ {
		_, err := reg.MarkOccupied(cell.IDFor(n))
		require.NoError(t, err)
	}
	_, err = svc.OpenAvailable(context.Background(), cell.SizeXL, "")
	assert.ErrorIs(t, err, cell.ErrNoAvailableCells)
}

func TestService_OpenAvailableDefaultsToM(t *testing.T) {
	svc, _, _ := newTestService(&stubDriver{connected: true})
	res, err := svc.OpenAvailable(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.CellNumber)
}

func TestService_LEDAndWeight(t *testing.T) {
	drv := &stubDriver{connected: true, weight: 2100}
	svc, reg, _ := newTestService(drv)
	ctx := context.Background()

	require.NoError(t, svc.SetLED(ctx, "cell-4", "Green"))
	assert.Equal(t, LEDGreen, drv.led[4])
	assert.Equal(t, byte(0x01), LEDGreen.Code())

	err := svc.SetLED(ctx, "cell-4", "purple")
	assert.True(t, errors.Is(err, ErrInvalidColor))
	assert.ErrorIs(t, svc.SetLED(ctx, "cell-99", "red"), cell.ErrCellNotFound)

	w, err := svc.Weight(ctx, "cell-4")
	require.NoError(t, err)
	assert.Equal(t, 2100, w)
	c, _ := reg.Get("cell-4")
	require.NotNil(t, c.Weight)
	assert.Equal(t, 2100, *c.Weight)
}

func TestService_ReserveRelease(t *testing.T) {
	svc, _, _ := newTestService(&stubDriver{connected: true})
	_, err := svc.Reserve("cell-3", "order-9")
	require.NoError(t, err)
	_, err = svc.Reserve("cell-3", "order-10")
	assert.ErrorIs(t, err, cell.ErrPreconditionFailed)
	c, err := svc.Release("cell-3")
	require.NoError(t, err)
	assert.Equal(t, cell.StatusAvailable, c.Status)
}
