package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 与 CORS 策略一致：对所有来源开放
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteWait = 10 * time.Second

// Events 门事件流（Server-Sent Events）
// @Summary 门事件流
// @Description 每个门状态跳变推送一条 data: {cellId, cellNumber, doorOpen, timestamp}
// @Tags 锁柜
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /api/locker/events [get]
func (h *LockerHandler) Events(c *gin.Context) {
	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// 长连接：每次写入前续期，写不出去的对端在 wsWriteWait 内被断开
	rc := http.NewResponseController(c.Writer)
	extend := func() { _ = rc.SetWriteDeadline(time.Now().Add(wsWriteWait)) }
	extend()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ":ok\n\n")
	w.Flush()

	h.logger.Debug("sse subscriber connected", zap.String("subscriber", sub.ID))
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("sse subscriber disconnected", zap.String("subscriber", sub.ID))
			return
		case ev, ok := <-sub.C:
			if !ok {
				// 被剔除（消费过慢）或服务关闭
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			extend()
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				return
			}
			w.Flush()
		case <-ticker.C:
			extend()
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}

// EventsWS 门事件流（WebSocket），每条消息为一个 JSON 门事件
// @Summary 门事件流（WebSocket）
// @Tags 锁柜
// @Router /api/locker/events/ws [get]
func (h *LockerHandler) EventsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// 读循环只用于感知对端关闭
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "unsubscribed"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
