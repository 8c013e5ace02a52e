package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/repo"
	"github.com/LeventeLantos/lead-outreach/internal/service"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	sends           *prometheus.CounterVec
	repliesByCat    *prometheus.CounterVec
	leadsByStatus   *prometheus.GaugeVec
	leadsTotal      prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpActiveConns prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		sends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_sends_total",
				Help: "Outbound send attempts by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		repliesByCat: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replies_classified_total",
				Help: "Inbound replies by classified category",
			},
			[]string{"category"},
		),
		leadsByStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leads_by_status",
				Help: "Number of leads per lifecycle status",
			},
			[]string{"status"},
		),
		leadsTotal: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "leads_total",
				Help: "Number of leads in the store",
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpActiveConns: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of in-flight HTTP requests",
			},
		),
	}
}

func (m *Metrics) SendAttempt(stage string, outcome service.SendOutcome) {
	m.sends.WithLabelValues(stage, string(outcome)).Inc()
}

func (m *Metrics) ReplyClassified(category model.Category) {
	m.repliesByCat.WithLabelValues(string(category)).Inc()
}

// SetLeadStats replaces the per-status gauges with a fresh snapshot.
func (m *Metrics) SetLeadStats(s repo.Stats) {
	m.leadsByStatus.Reset()
	for status, n := range s.ByStatus {
		m.leadsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
	m.leadsTotal.Set(float64(s.Total))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency labelled by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpActiveConns.Inc()
		defer m.httpActiveConns.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}

		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
