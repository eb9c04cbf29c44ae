package bootstrap

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/locker-gateway/internal/config"
	"github.com/taoyao-code/locker-gateway/internal/locker"
	"github.com/taoyao-code/locker-gateway/internal/serialport"
)

func simConfig() *cfgpkg.Config {
	cfg := &cfgpkg.Config{}
	cfg.App.Name = "locker-gateway"
	cfg.Locker.CellCount = 16
	cfg.Locker.AutoLockSeconds = 60
	cfg.Simulation.Enabled = true
	cfg.Simulation.Seed = 1
	cfg.Simulation.AutoCloseAfter = time.Hour
	cfg.Events.BufferSize = 8
	cfg.Events.Heartbeat = time.Second
	cfg.Metrics.Enable = true
	cfg.Metrics.Path = "/metrics"
	return cfg
}

func TestRunContext_Simulation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunContext(ctx, simConfig(), zap.NewNop(), ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/locker/status")
	require.NoError(t, err)
	var st locker.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.True(t, st.Connected)
	assert.Equal(t, 16, st.TotalCells)
	assert.Equal(t, locker.ModeSimulation, st.Mode)

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown timed out")
	}
}

func TestRunContext_SerialPortMissing(t *testing.T) {
	cfg := simConfig()
	cfg.Simulation.Enabled = false
	cfg.Serial.Port = "/dev/locker-does-not-exist"
	cfg.Serial.BaudRate = 9600

	err := RunContext(context.Background(), cfg, zap.NewNop(), nil)
	var ce *serialport.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "/dev/locker-does-not-exist", ce.Port)
}

func TestRunContext_BadLayout(t *testing.T) {
	cfg := simConfig()
	cfg.Locker.LayoutPath = "/nonexistent/layout.yaml"
	err := RunContext(context.Background(), cfg, zap.NewNop(), nil)
	assert.Error(t, err)
}
