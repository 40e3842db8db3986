// Package metrics exposes Prometheus counters for submissions and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/divinahealthcare/site/internal/submit"
)

// Metrics holds the site's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Submissions        *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
	Uploads            *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_submissions_total",
				Help: "Form submissions by terminal outcome",
			},
			[]string{"form", "outcome"},
		),
		SubmissionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "site_submission_duration_seconds",
				Help:    "Time from submit to terminal outcome",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"form"},
		),
		Uploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_attachment_uploads_total",
				Help: "Attachment uploads by result",
			},
			[]string{"result"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "site_http_requests_total",
				Help: "HTTP requests by route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "site_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Observe implements submit.Observer.
func (m *Metrics) Observe(_ context.Context, ev submit.Event) {
	switch {
	case ev.From == submit.Uploading && ev.To == submit.Composing:
		m.Uploads.WithLabelValues("success").Inc()
	case ev.To == submit.UploadFailed:
		m.Uploads.WithLabelValues("failure").Inc()
	}

	if ev.To.Outcome() {
		m.Submissions.WithLabelValues(ev.Form, ev.To.String()).Inc()
		m.SubmissionDuration.WithLabelValues(ev.Form).Observe(ev.Elapsed.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by chi route pattern so path parameters do not
// explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
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
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
