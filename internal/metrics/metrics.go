package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sendout_emails_total",
			Help: "Total number of email delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	batchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sendout_batch_jobs_total",
			Help: "Total number of batch job runs by result",
		},
		[]string{"result"},
	)

	batchYieldsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sendout_batch_yields_total",
			Help: "Total number of cooperative yields inside batch jobs",
		},
	)

	sendoutsTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sendouts_terminal_total",
			Help: "Total number of sendouts reaching a terminal state",
		},
		[]string{"status"},
	)
)

func RecordEmail(outcome string)   { emailsTotal.WithLabelValues(outcome).Inc() }
func RecordBatchJob(result string) { batchJobsTotal.WithLabelValues(result).Inc() }
func RecordYield()                 { batchYieldsTotal.Inc() }
func RecordTerminal(status string) { sendoutsTerminal.WithLabelValues(status).Inc() }

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per route. The path
// label is the chi route pattern, not the raw URL, so parameterized
// routes stay a single series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
