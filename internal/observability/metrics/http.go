package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns the application registry. It is scraped together with
// the default registry, which carries the runtime and database pool collectors.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	registry *prometheus.Registry
}

func NewHTTPMetrics(registry *prometheus.Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewboost_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewboost_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registry: registry,
	}
	registry.MustRegister(m.requests, m.duration)
	return m
}

// GinMiddleware observes each request. Routes are templated so /r/:code
// never leaks a short code into a label.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *HTTPMetrics) Handler() http.Handler {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, m.registry}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
