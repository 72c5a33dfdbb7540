// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReviewRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_review_runs_total",
		Help: "Total number of automatic review runs",
	}, []string{"outcome"})

	ReviewDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_review_duration_seconds",
		Help:    "Duration of a full automatic review",
		Buckets: prometheus.DefBuckets,
	})

	ReviewErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_review_errors_total",
		Help: "Errors recorded by review passes",
	}, []string{"pass"})

	AlertsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_created_total",
		Help: "Total number of alerts created",
	}, []string{"kind", "source"})

	AlertsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_auto_resolved_total",
		Help: "Total number of alerts closed because their condition cleared",
	}, []string{"kind"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_notifications_total",
		Help: "Notification dispatch attempts",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_events_published_total",
		Help: "Events published to RabbitMQ",
	}, []string{"event_type", "result"})

	MessagesConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_messages_consumed_total",
		Help: "Messages consumed from RabbitMQ by settlement outcome",
	}, []string{"event_type", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(rec.status)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
