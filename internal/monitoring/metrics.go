package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 运行结果标签
const (
	OutcomeCompleted = "completed"
	OutcomeFatal     = "fatal"
	OutcomeBusy      = "busy"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 运行指标
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// 邮件指标
	MessagesTotal *prometheus.CounterVec
	DraftsTotal   *prometheus.CounterVec
	MarkedRead    prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 业务指标
	AttachmentSize      prometheus.Histogram
	ModelCallDuration   *prometheus.HistogramVec
	EmailProcessingTime prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics 在默认注册表上创建监控指标
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWith 在指定注册表上创建监控指标，测试中使用独立注册表避免重复注册
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailtriage_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_runs_total",
				Help: "Total number of triage runs by outcome",
			},
			[]string{"outcome"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_run_duration_seconds",
				Help:    "Triage run duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailtriage_last_run_timestamp_seconds",
				Help: "Unix time of the last finished triage run",
			},
		),

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_messages_total",
				Help: "Total number of processed unread messages by verdict",
			},
			[]string{"verdict"},
		),

		DraftsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_drafts_total",
				Help: "Total number of drafts created",
			},
			[]string{"kind"},
		),

		MarkedRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailtriage_messages_marked_read_total",
				Help: "Total number of messages marked as read",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_errors_total",
				Help: "Total number of errors by stage",
			},
			[]string{"stage"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailtriage_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		AttachmentSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_attachment_size_bytes",
				Help:    "Size of attached files in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		ModelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailtriage_model_call_duration_seconds",
				Help:    "Language model call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"purpose"},
		),

		EmailProcessingTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_email_processing_duration_seconds",
				Help:    "Per-message processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		gatherer: gatherer,
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRun 记录一次运行结束
func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeBusy {
		return
	}
	m.RunDuration.Observe(duration.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()
}

// RecordVerdict 记录一封邮件的分类结果
func (m *Metrics) RecordVerdict(verdict string) {
	m.MessagesTotal.WithLabelValues(verdict).Inc()
}

// RecordDraft 记录草稿创建
func (m *Metrics) RecordDraft(withAttachment bool) {
	kind := "reply"
	if withAttachment {
		kind = "attachment"
	}
	m.DraftsTotal.WithLabelValues(kind).Inc()
}

// RecordMarkedRead 记录标记已读
func (m *Metrics) RecordMarkedRead() {
	m.MarkedRead.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordAttachmentSize 记录附件大小
func (m *Metrics) RecordAttachmentSize(size int64) {
	m.AttachmentSize.Observe(float64(size))
}

// RecordModelCall 记录模型调用耗时
func (m *Metrics) RecordModelCall(purpose string, duration time.Duration) {
	m.ModelCallDuration.WithLabelValues(purpose).Observe(duration.Seconds())
}

// RecordEmailProcessingTime 记录单封邮件处理耗时
func (m *Metrics) RecordEmailProcessingTime(duration time.Duration) {
	m.EmailProcessingTime.Observe(duration.Seconds())
}

// HTTPHandler 返回 Prometheus 指标处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
