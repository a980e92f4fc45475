package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/detcache/detcache/internal/cache"
)

// Metrics holds the Prometheus collectors exported on /-/metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewMetrics 创建独立的 registry，避免多个 App 实例争用全局默认 registry。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "detcache",
				Name:      "kv_requests_total",
				Help:      "Key/value requests served, by method and result.",
			},
			[]string{"method", "result"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "detcache",
				Name:      "backend_outcomes_total",
				Help:      "Per-backend outcomes reported by cache operations.",
			},
			[]string{"backend", "status"},
		),
	}
	m.registry.MustRegister(m.requests, m.outcomes)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) observeRequest(method, result string) {
	m.requests.WithLabelValues(method, result).Inc()
}

func (m *Metrics) observeOutcomes(outcomes []cache.Outcome) {
	for _, o := range outcomes {
		m.outcomes.WithLabelValues(o.Backend, string(o.Status)).Inc()
	}
}
