// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation: generic HTTP traffic metrics
// plus the domain counters the redemption path feeds. Label sets are kept
// small and bounded:
//
//   - method:  HTTP verb
//   - path:    the registered Gin route (raw URL path only when no route
//     matched), which keeps cardinality bounded
//   - status:  numeric status code as a string
//   - outcome: closed set of redemption outcomes (success plus error kinds)
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// redemptions counts apply attempts by outcome ("success" or the stable
	// error code, e.g. "usage_limit_reached").
	redemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_redemptions_total",
			Help: "Total discount redemption attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// discountGiven accumulates the dollar value of reserved discounts.
	discountGiven = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discount_amount_reserved_total",
			Help: "Cumulative discount amount reserved by successful applications.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, redemptions, discountGiven)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveRedemption records one apply attempt. Outcome must come from the
// closed error-code set; amount is only added for successes.
func ObserveRedemption(outcome string, amount float64) {
	redemptions.WithLabelValues(outcome).Inc()
	if outcome == "success" && amount > 0 {
		discountGiven.Add(amount)
	}
}
