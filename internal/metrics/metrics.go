package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aguimock_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aguimock_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RunsTotal counts agent runs by terminal outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aguimock_runs_total",
			Help: "Total number of agent runs by outcome",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks how long a run streams end to end
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aguimock_run_duration_seconds",
			Help:    "Agent run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// ActiveStreams tracks currently open SSE responses
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aguimock_active_streams",
			Help: "Number of open event streams",
		},
	)

	// EventsEmitted counts emitted stream events by kind
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aguimock_events_emitted_total",
			Help: "Total number of stream events emitted",
		},
		[]string{"kind"},
	)

	// FeedbackTotal counts received feedback by type
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aguimock_feedback_total",
			Help: "Total number of feedback submissions",
		},
		[]string{"type"},
	)
)

// Run outcome labels.
const (
	OutcomeAnswered = "answered"
	OutcomeNotFound = "not_found"
	OutcomeCanceled = "canceled"
	OutcomeFailed   = "failed"
)

// Middleware records request count and latency for every route. The
// templated route path keeps label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "other"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records a finished run with its terminal outcome
func RecordRun(outcome string, duration time.Duration) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(duration.Seconds())
}

// RecordEvent records one emitted stream event
func RecordEvent(kind string) {
	EventsEmitted.WithLabelValues(kind).Inc()
}

// RecordFeedback records a feedback submission
func RecordFeedback(feedbackType string) {
	FeedbackTotal.WithLabelValues(feedbackType).Inc()
}
