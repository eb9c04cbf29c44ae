package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/locker-gateway/internal/protocol/kz004"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 网关业务指标
// 同时实现关联器、轮询器与事件扇出的观察者接口
type AppMetrics struct {
	SerialBytesReceived prometheus.Counter
	MalformedFrames     prometheus.Counter
	CommandTotal        *prometheus.CounterVec   // labels: cmd, result=ok|timeout|transport_error
	CommandDuration     *prometheus.HistogramVec // labels: cmd
	StrayFrames         *prometheus.CounterVec   // labels: cmd
	PollTotal           *prometheus.CounterVec   // labels: result=ok|error
	LinkDegraded        prometheus.Gauge
	DoorEvents          *prometheus.CounterVec // labels: door=open|closed
	DoorEventsDropped   prometheus.Counter
	Subscribers         prometheus.Gauge
	EventsBroadcast     prometheus.Counter
	SubscribersDropped  prometheus.Counter
	HTTPRequests        *prometheus.CounterVec // labels: route, status
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		SerialBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_serial_bytes_received_total",
			Help: "Total bytes read from the serial link.",
		}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_malformed_frames_total",
			Help: "Frames discarded for header/tail/length/checksum errors or inter-byte timeout.",
		}),
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_command_total",
			Help: "Commands sent to the controller by result.",
		}, []string{"cmd", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locker_command_duration_seconds",
			Help:    "Time from write to response or timeout.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2, 5, 15},
		}, []string{"cmd"}),
		StrayFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_stray_frames_total",
			Help: "Inbound frames with no matching pending command.",
		}, []string{"cmd"}),
		PollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_door_poll_total",
			Help: "Door status polls by result.",
		}, []string{"result"}),
		LinkDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locker_link_degraded",
			Help: "1 when consecutive poll failures reached the threshold.",
		}),
		DoorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_door_events_total",
			Help: "Door edge events produced.",
		}, []string{"door"}),
		DoorEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_door_events_dropped_total",
			Help: "Door events dropped because the event channel was full.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locker_event_subscribers",
			Help: "Current number of event stream subscribers.",
		}),
		EventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_events_broadcast_total",
			Help: "Door events broadcast to subscribers.",
		}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locker_event_subscribers_dropped_total",
			Help: "Subscribers dropped for not keeping up.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_http_requests_total",
			Help: "HTTP API requests by route and status.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(
		m.SerialBytesReceived, m.MalformedFrames,
		m.CommandTotal, m.CommandDuration, m.StrayFrames,
		m.PollTotal, m.LinkDegraded,
		m.DoorEvents, m.DoorEventsDropped,
		m.Subscribers, m.EventsBroadcast, m.SubscribersDropped,
		m.HTTPRequests,
	)
	return m
}

// BytesReceived 串口读到的字节数
func (m *AppMetrics) BytesReceived(n int) { m.SerialBytesReceived.Add(float64(n)) }

// MalformedFrame 丢弃一帧
func (m *AppMetrics) MalformedFrame() { m.MalformedFrames.Inc() }

// CommandDone 命令结束
func (m *AppMetrics) CommandDone(cmd byte, result string, d time.Duration) {
	name := kz004.CommandName(cmd)
	m.CommandTotal.WithLabelValues(name, result).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(d.Seconds())
}

// StrayFrame 未匹配的上行帧
func (m *AppMetrics) StrayFrame(cmd byte) {
	m.StrayFrames.WithLabelValues(kz004.CommandName(cmd)).Inc()
}

// PollCompleted 一次门状态轮询结束
func (m *AppMetrics) PollCompleted(err error) {
	if err != nil {
		m.PollTotal.WithLabelValues("error").Inc()
		return
	}
	m.PollTotal.WithLabelValues("ok").Inc()
}

// DegradedChanged 链路降级状态切换
func (m *AppMetrics) DegradedChanged(degraded bool) {
	if degraded {
		m.LinkDegraded.Set(1)
		return
	}
	m.LinkDegraded.Set(0)
}

// DoorEventEmitted 产生一个门事件
func (m *AppMetrics) DoorEventEmitted(open bool) {
	if open {
		m.DoorEvents.WithLabelValues("open").Inc()
		return
	}
	m.DoorEvents.WithLabelValues("closed").Inc()
}

// DoorEventDropped 事件通道满
func (m *AppMetrics) DoorEventDropped() { m.DoorEventsDropped.Inc() }

// SubscribersChanged 订阅者数量变化
func (m *AppMetrics) SubscribersChanged(n int) { m.Subscribers.Set(float64(n)) }

// EventBroadcast 一次广播
func (m *AppMetrics) EventBroadcast() { m.EventsBroadcast.Inc() }

// SubscriberDropped 剔除慢订阅者
func (m *AppMetrics) SubscriberDropped() { m.SubscribersDropped.Inc() }
