package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one API server. Each server
// gets its own registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	MemoriesSaved   prometheus.Counter
	MemoriesDecayed prometheus.Counter
	FilesUpserted   *prometheus.CounterVec
	StoreErrors     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mem_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mem_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		MemoriesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mem_memories_saved_total",
				Help: "Total number of memories saved through the API",
			},
		),
		MemoriesDecayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mem_memories_decayed_total",
				Help: "Total number of memories marked cold by decay",
			},
		),
		FilesUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mem_files_upserted_total",
				Help: "Indexed file upserts by outcome",
			},
			[]string{"outcome"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mem_store_errors_total",
				Help: "Store errors surfaced to API clients, by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.MemoriesSaved,
		m.MemoriesDecayed,
		m.FilesUpserted,
		m.StoreErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// instrument counts and times every request, labelled by route pattern
// rather than raw path.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
