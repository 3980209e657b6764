// Package metrics 提供笔记服务的 Prometheus 指标
// 所有指标注册在独立的 Registry 上, 由调用方构造后注入各组件
// 方法允许在 nil 接收者上调用, 未注入指标时静默忽略
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "racenotes"

// Metrics 服务指标集合
type Metrics struct {
	registry *prometheus.Registry

	NotesCreated     *prometheus.CounterVec
	NoteStepFailures *prometheus.CounterVec
	Uploads          *prometheus.CounterVec
	UploadDuration   prometheus.Histogram
	GatewayRequests  *prometheus.CounterVec
	BreakerState     prometheus.Gauge
	CacheRefreshes   *prometheus.CounterVec
	OutboxPending    prometheus.Gauge
	CachedNotes      prometheus.Gauge
}

// New 创建指标集合并注册到新的 Registry
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry 在给定 Registry 上注册指标
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register racenotes metrics: %w", err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.NotesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notes_created_total",
		Help:      "Notes accepted, by mode (online, queued, fallback_view).",
	}, []string{"mode"})

	m.NoteStepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "note_step_failures_total",
		Help:      "Best-effort note creation steps that failed after the note was saved.",
	}, []string{"step"})

	m.Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_uploads_total",
		Help:      "Media uploads by outcome (cloud, local_fallback).",
	}, []string{"outcome"})

	m.UploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "media_upload_duration_seconds",
		Help:      "Duration of media uploads to object storage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	m.GatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Remote gateway calls by result (success, failure, rejected).",
	}, []string{"result"})

	m.BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_breaker_state",
		Help:      "Remote gateway circuit breaker state (0=closed, 1=half-open, 2=open).",
	})

	m.CacheRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_refreshes_total",
		Help:      "Offline mirror replacements by kind.",
	}, []string{"kind"})

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_pending",
		Help:      "Notes queued while offline and not yet marked synced.",
	})

	m.CachedNotes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_notes",
		Help:      "Notes currently held in the offline mirror.",
	})
}

// Describe 实现 prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.NotesCreated.Describe(ch)
	m.NoteStepFailures.Describe(ch)
	m.Uploads.Describe(ch)
	ch <- m.UploadDuration.Desc()
	m.GatewayRequests.Describe(ch)
	ch <- m.BreakerState.Desc()
	m.CacheRefreshes.Describe(ch)
	ch <- m.OutboxPending.Desc()
	ch <- m.CachedNotes.Desc()
}

// Collect 实现 prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.NotesCreated.Collect(ch)
	m.NoteStepFailures.Collect(ch)
	m.Uploads.Collect(ch)
	ch <- m.UploadDuration
	m.GatewayRequests.Collect(ch)
	ch <- m.BreakerState
	m.CacheRefreshes.Collect(ch)
	ch <- m.OutboxPending
	ch <- m.CachedNotes
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 的HTTP处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// NoteCreated 记录一次笔记写入
func (m *Metrics) NoteCreated(mode string) {
	if m == nil {
		return
	}
	m.NotesCreated.WithLabelValues(mode).Inc()
}

// StepFailed 记录一次尽力而为步骤失败
func (m *Metrics) StepFailed(step string) {
	if m == nil {
		return
	}
	m.NoteStepFailures.WithLabelValues(step).Inc()
}

// UploadFinished 记录一次上传结果及耗时
func (m *Metrics) UploadFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	if outcome == "cloud" {
		m.UploadDuration.Observe(seconds)
	}
}

// GatewayRequest 记录一次网关调用结果
func (m *Metrics) GatewayRequest(result string) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(result).Inc()
}

// SetBreakerState 更新熔断器状态
func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BreakerState.Set(state)
}

// CacheRefreshed 记录一次镜像替换
func (m *Metrics) CacheRefreshed(kind string, size int) {
	if m == nil {
		return
	}
	m.CacheRefreshes.WithLabelValues(kind).Inc()
	if kind == "notes" {
		m.CachedNotes.Set(float64(size))
	}
}

// SetOutboxPending 更新待同步数量
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}
