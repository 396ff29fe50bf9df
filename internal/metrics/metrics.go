// Package metrics exposes ledger and HTTP metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keuangan/internal/ledger"
)

// Registry holds every collector and implements ledger.Recorder.
type Registry struct {
	reg *prometheus.Registry

	Mutations       *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec
	Records         *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	RateLimited     prometheus.Counter
}

var _ ledger.Recorder = (*Registry)(nil)

// New creates a registry with Go runtime and process collectors included.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keuangan_ledger_mutations_total",
				Help: "Ledger mutations by operation, table and result",
			},
			[]string{"op", "table", "result"},
		),
		PersistDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keuangan_ledger_persist_duration_seconds",
				Help:    "Duration of full-store rewrites",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"result"},
		),
		Records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keuangan_ledger_records",
				Help: "Records currently held per table",
			},
			[]string{"table"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keuangan_http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keuangan_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keuangan_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Mutations,
		r.PersistDuration,
		r.Records,
		r.HTTPRequests,
		r.HTTPDuration,
		r.RateLimited,
	)
	return r
}

// ObserveMutation implements ledger.Recorder.
func (r *Registry) ObserveMutation(op, table string, err error) {
	r.Mutations.WithLabelValues(op, table, resultLabel(err)).Inc()
}

// ObservePersist implements ledger.Recorder.
func (r *Registry) ObservePersist(d time.Duration, err error) {
	r.PersistDuration.WithLabelValues(resultLabel(err)).Observe(d.Seconds())
}

// SetRecordCount implements ledger.Recorder.
func (r *Registry) SetRecordCount(table string, n int) {
	r.Records.WithLabelValues(table).Set(float64(n))
}

// ObserveHTTP records one finished request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return "not_found"
	case errors.Is(err, ledger.ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
