package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seqdex",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds by API endpoint",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seqdex",
			Name:      "http_requests_total",
			Help:      "HTTP requests by API endpoint and status",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seqdex",
			Name:      "http_response_size_bytes",
			Help:      "Response body size by API endpoint",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B .. 4MB
		},
		[]string{"endpoint"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "seqdex",
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration, httpRequestsTotal, httpResponseBytes, httpRequestsInFlight)
}

// Endpoint labels. Index names and event IDs never reach a label.
const (
	EndpointSearch    = "eql_search"
	EndpointBulk      = "bulk"
	EndpointDoc       = "doc"
	EndpointIndex     = "index"
	EndpointIndices   = "indices"
	EndpointHealth    = "health"
	EndpointMetrics   = "metrics"
	EndpointUnmatched = "unmatched"
)

// Middleware records per-endpoint latency, status counts and response
// sizes. It must run inside the chi router so the route pattern is known.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				pattern = rctx.RoutePattern()
			}
			ep := Endpoint(pattern)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			code := strconv.Itoa(status)

			httpRequestDuration.WithLabelValues(r.Method, ep, code).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, ep, code).Inc()
			httpResponseBytes.WithLabelValues(ep).Observe(float64(ww.BytesWritten()))
		})
	}
}

// Endpoint maps a chi route pattern to its endpoint label. Unknown
// patterns are kept as is; they are bounded by the route table.
func Endpoint(pattern string) string {
	switch strings.TrimSuffix(pattern, "/") {
	case "":
		return EndpointUnmatched
	case "/{index}/_eql/search":
		return EndpointSearch
	case "/{index}/_bulk":
		return EndpointBulk
	case "/{index}/_doc", "/{index}/_doc/{id}":
		return EndpointDoc
	case "/{index}":
		return EndpointIndex
	case "/_indices":
		return EndpointIndices
	case "/health":
		return EndpointHealth
	case "/metrics":
		return EndpointMetrics
	default:
		return pattern
	}
}
