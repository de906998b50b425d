// Package metrics содержит метрики Prometheus сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docanchor"

// Metrics - набор метрик сервиса на собственном реестре.
type Metrics struct {
	registry *prometheus.Registry

	LedgerCalls   *prometheus.CounterVec
	LedgerBreaker *prometheus.GaugeVec
	Verifications *prometheus.CounterVec
	BulkBatchSize prometheus.Histogram
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New создает метрики и регистрирует их в новом реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LedgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "calls_total",
			Help:      "Обращения к реестру по операциям и результатам.",
		}, []string{"op", "result"}),
		LedgerBreaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "breaker_state",
			Help:      "Состояние размыкателя реестра: 0 - закрыт, 1 - полуоткрыт, 2 - открыт.",
		}, []string{"name"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "records_total",
			Help:      "Записи журнала проверок по способу и вердикту.",
		}, []string{"method", "verified"}),
		BulkBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "bulk_batch_size",
			Help:      "Размер пакетов пакетной проверки.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP-запросы по маршрутам и кодам ответа.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Длительность обработки HTTP-запросов.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LedgerCalls,
		m.LedgerBreaker,
		m.Verifications,
		m.BulkBatchSize,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry возвращает реестр метрик (используется в тестах).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
