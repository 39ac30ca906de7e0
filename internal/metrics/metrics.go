// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the booking saga.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_bookings_created_total",
		Help: "Bookings committed by the saga.",
	})

	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_bookings_cancelled_total",
		Help: "Bookings transitioned from confirmed to cancelled.",
	})

	CompensationsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_saga_compensations_total",
		Help: "External events deleted after a failed local commit.",
	})

	CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_saga_compensation_failures_total",
		Help: "Compensation attempts that themselves failed, leaving an orphaned external event.",
	})

	BusyFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_busy_fetch_failures_total",
		Help: "External busy-interval reads that failed and were treated as empty.",
	})
)

// Middleware records request counts and latencies labeled by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
