package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "videodiff"

	vlmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vlm_calls_total",
			Help:      "Total number of VLM calls by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	vlmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vlm_call_duration_seconds",
			Help:      "VLM call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	vlmRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vlm_retries_total",
			Help:      "Number of retried VLM calls by error class",
		},
		[]string{"class"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens consumed by strategy and kind",
		},
		[]string{"strategy", "kind"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func VLMCall(mode, status string) {
	vlmCallsTotal.With(prometheus.Labels{
		"mode":   mode,
		"status": status,
	}).Inc()
}

func VLMCallDuration(mode string, duration time.Duration) {
	vlmCallDuration.With(prometheus.Labels{
		"mode": mode,
	}).Observe(duration.Seconds())
}

func VLMRetry(class string) {
	vlmRetriesTotal.With(prometheus.Labels{
		"class": class,
	}).Inc()
}

func AddTokens(strategy string, prompt, completion int64) {
	tokensTotal.With(prometheus.Labels{
		"strategy": strategy,
		"kind":     "prompt",
	}).Add(float64(prompt))
	tokensTotal.With(prometheus.Labels{
		"strategy": strategy,
		"kind":     "completion",
	}).Add(float64(completion))
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusResponseWriter{w, http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		httpRequestsTotal.With(prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   strconv.Itoa(ww.status),
		}).Inc()
		httpRequestDuration.With(prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Observe(duration.Seconds())
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
