package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ============ Prometheus 指标 ============

// Metrics 事件处理的运行时指标
type Metrics struct {
	IncidentsTotal *prometheus.CounterVec
	MTTASeconds    prometheus.Histogram
	MTTRSeconds    prometheus.Histogram
}

// New 注册指标到指定的 Registry
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IncidentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_total",
			Help: "Total number of incidents created, labeled by severity",
		}, []string{"severity"}),
		MTTASeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_mtta_seconds",
			Help:    "Time from incident creation to acknowledgement in seconds",
			Buckets: []float64{5, 10, 30, 60, 300, 600},
		}),
		MTTRSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_mttr_seconds",
			Help:    "Time from incident creation to resolution in seconds",
			Buckets: []float64{60, 300, 600, 1800, 3600, 7200},
		}),
	}
}

// ObserveCreated 记录一次事件创建
func (m *Metrics) ObserveCreated(severity string) {
	m.IncidentsTotal.WithLabelValues(severity).Inc()
}

// ObserveMTTA 记录响应耗时（创建到确认）
func (m *Metrics) ObserveMTTA(seconds float64) {
	m.MTTASeconds.Observe(seconds)
}

// ObserveMTTR 记录解决耗时（创建到解决）
func (m *Metrics) ObserveMTTR(seconds float64) {
	m.MTTRSeconds.Observe(seconds)
}

// Handler 暴露 /metrics 端点
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
