// Package metrics holds the prometheus collectors for the cache and its HTTP
// surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	lookups     *prometheus.CounterVec   // kind, result=hit|miss
	failures    *prometheus.CounterVec   // code
	shared      prometheus.Counter       // callers that joined another caller's fill
	inFlight    prometheus.Gauge         // fills running
	stage       *prometheus.HistogramVec // stage=resolve|fetch|mux|publish
	fetchedByte prometheus.Counter
	requests    *prometheus.CounterVec // route, code
}

// New registers every collector on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tubecache",
			Name:      "lookups_total",
			Help:      "Cache lookups by media kind and result.",
		}, []string{"kind", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tubecache",
			Name:      "failures_total",
			Help:      "Failed materializations by error code.",
		}, []string{"code"}),
		shared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tubecache",
			Name:      "shared_fills_total",
			Help:      "Requests whose fill was shared with concurrent requests for the same key.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tubecache",
			Name:      "fills_in_flight",
			Help:      "Materializations currently running.",
		}),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tubecache",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		fetchedByte: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tubecache",
			Name:      "fetched_bytes_total",
			Help:      "Bytes staged from upstream.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tubecache",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.reg.MustRegister(
		m.lookups, m.failures, m.shared, m.inFlight, m.stage, m.fetchedByte, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Lookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Failure(code string) {
	if m != nil {
		m.failures.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) Shared() {
	if m != nil {
		m.shared.Inc()
	}
}

// FillStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) FillStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.stage.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) Fetched(n int64) {
	if m != nil && n > 0 {
		m.fetchedByte.Add(float64(n))
	}
}

func (m *Metrics) Request(route string, status int) {
	if m != nil {
		m.requests.WithLabelValues(route, statusLabel(status)).Inc()
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
