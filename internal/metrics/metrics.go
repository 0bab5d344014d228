package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_sessions_started_total",
		Help: "Quiz sessions created by start or flow submission",
	})

	Answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answers processed by the session engine",
		},
		[]string{"result"},
	)

	Completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_completions_total",
			Help: "Completed quiz sessions by outcome",
		},
		[]string{"outcome"},
	)

	CoinsCredited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_coins_credited_total",
		Help: "Reward points credited to users",
	})

	NotifierSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_sends_total",
			Help: "Outbound channel messages by provider and status",
		},
		[]string{"provider", "status"},
	)

	ScheduledJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_total",
			Help: "Delayed quiz start jobs by event",
		},
		[]string{"event"},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// Register adds every collector to reg; call once per process.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SessionsStarted,
		Answers,
		Completions,
		CoinsCredited,
		NotifierSends,
		ScheduledJobs,
		RequestCounter,
		RequestDuration,
	)
}

// Middleware records request counts and latency by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status(ww))).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
