package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	saves     *prometheus.CounterVec
	publishes *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minisite_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "minisite_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minisite_master_saves_total",
				Help: "Master saves by kind and result",
			},
			[]string{"kind", "result"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minisite_publishes_total",
				Help: "Publish requests by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.saves, m.publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeSave(kind string, err error) {
	result := "ok"
	if err != nil {
		_, result = classify(err)
	}
	m.saves.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observePublish(err error) {
	result := "ok"
	if err != nil {
		_, result = classify(err)
	}
	m.publishes.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency labelled by the mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
