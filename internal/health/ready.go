package health

import "sync/atomic"

// Readiness 启动阶段就绪标记：后端已连接且 HTTP 已开始监听
type Readiness struct {
	backendReady atomic.Bool
	httpReady    atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetBackendReady(v bool) { r.backendReady.Store(v) }
func (r *Readiness) SetHTTPReady(v bool)    { r.httpReady.Store(v) }

// Ready 全部为 true
func (r *Readiness) Ready() bool {
	return r.backendReady.Load() && r.httpReady.Load()
}
