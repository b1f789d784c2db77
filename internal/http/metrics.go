package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type metrics struct {
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	userMutations      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umd",
			Subsystem: "dashboard",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "umd",
			Subsystem: "dashboard",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umd",
			Subsystem: "dashboard",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}),
		userMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umd",
			Subsystem: "users",
			Name:      "mutations_total",
			Help:      "User add/delete attempts by outcome",
		}, []string{"op", "outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umd",
			Subsystem: "users",
			Name:      "validation_failures_total",
			Help:      "Rejected form fields",
		}, []string{"field"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "umd",
			Subsystem: "dashboard",
			Name:      "sessions_active",
			Help:      "Live dashboard sessions",
		}),
	}
	m.requestTotal = register(m.requestTotal)
	m.requestLatency = register(m.requestLatency)
	m.rateLimitHits = register(m.rateLimitHits)
	m.userMutations = register(m.userMutations)
	m.validationFailures = register(m.validationFailures)
	m.sessionsActive = register(m.sessionsActive)
	return m
}

// register adds c to the default registry, reusing an identical collector
// registered by an earlier router.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) recordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *metrics) recordRateLimitHit(route, key string) {
	m.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (m *metrics) recordMutation(op, outcome string) {
	m.userMutations.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
}

func (m *metrics) recordValidationFailures(fields []string) {
	for _, field := range fields {
		m.validationFailures.With(prometheus.Labels{"field": field}).Inc()
	}
}

func (m *metrics) setSessions(n int) {
	m.sessionsActive.Set(float64(n))
}
