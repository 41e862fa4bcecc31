package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Domain event names.
const (
	EventPriceReported       = "price_reported"
	EventPriceQuickSet       = "price_quick_set"
	EventPriceConfirmed      = "price_confirmed"
	EventConfirmationRemoved = "confirmation_removed"
	EventPriceValidated      = "price_validated"
	EventPriceInvalidated    = "price_invalidated"
	EventCommentCreated      = "comment_created"
	EventCommentVoted        = "comment_voted"
	EventCommentUnvoted      = "comment_unvoted"
	EventCommentReported     = "comment_reported"
	EventStationCreated      = "station_created"
	EventStationApproved     = "station_approved"
	EventStationRejected     = "station_rejected"
	EventStationResubmitted  = "station_resubmitted"
	EventNotificationSent    = "notification_sent"
	EventNotificationFailed  = "notification_failed"
	EventNotificationDropped = "notification_dropped"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naftapp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "naftapp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	domainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naftapp",
			Name:      "domain_events_total",
			Help:      "Committed domain state changes by event.",
		},
		[]string{"event"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		domainEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordEvent counts a committed domain event.
func RecordEvent(event string) {
	domainEvents.WithLabelValues(event).Inc()
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry for scraping.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
