package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthResolutionsTotal     *prometheus.CounterVec
	GuardDenialsTotal        *prometheus.CounterVec
	OAuthLoginsTotal         *prometheus.CounterVec
	APIKeyValidationDuration prometheus.Histogram
	APIKeysIssuedTotal       prometheus.Counter

	// Cleanup metrics
	SessionsCleanedTotal prometheus.Counter
	CleanupRunsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roster_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_auth_resolutions_total",
				Help: "Requests by the credential scheme that resolved their principal",
			},
			[]string{"scheme"},
		),
		GuardDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_auth_guard_denials_total",
				Help: "Requests rejected by an authorization guard",
			},
			[]string{"guard", "status"},
		),
		OAuthLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_oauth_logins_total",
				Help: "GitHub login attempts by outcome",
			},
			[]string{"outcome"},
		),
		APIKeyValidationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roster_api_key_validation_duration_seconds",
				Help:    "Time spent verifying an API key against stored hashes",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		APIKeysIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_api_keys_issued_total",
				Help: "Total number of API keys issued",
			},
		),

		SessionsCleanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "roster_sessions_cleaned_total",
				Help: "Total number of expired sessions removed",
			},
		),
		CleanupRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roster_session_cleanup_runs_total",
				Help: "Session cleanup job runs by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthResolutionsTotal,
		m.GuardDenialsTotal,
		m.OAuthLoginsTotal,
		m.APIKeyValidationDuration,
		m.APIKeysIssuedTotal,
		m.SessionsCleanedTotal,
		m.CleanupRunsTotal,
	)

	return m
}

// The Record helpers are no-ops on a nil *Metrics so tests can skip metrics.

// RecordResolution counts a request by the scheme that resolved it
func (m *Metrics) RecordResolution(scheme string) {
	if m == nil {
		return
	}
	m.AuthResolutionsTotal.WithLabelValues(scheme).Inc()
}

// RecordGuardDenial counts a guard rejection
func (m *Metrics) RecordGuardDenial(guard string, status int) {
	if m == nil {
		return
	}
	m.GuardDenialsTotal.WithLabelValues(guard, strconv.Itoa(status)).Inc()
}

// RecordOAuthLogin counts a login attempt outcome
func (m *Metrics) RecordOAuthLogin(outcome string) {
	if m == nil {
		return
	}
	m.OAuthLoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAPIKeyValidation records how long an API key check took
func (m *Metrics) ObserveAPIKeyValidation(d time.Duration) {
	if m == nil {
		return
	}
	m.APIKeyValidationDuration.Observe(d.Seconds())
}

// RecordAPIKeyIssued counts an issued API key
func (m *Metrics) RecordAPIKeyIssued() {
	if m == nil {
		return
	}
	m.APIKeysIssuedTotal.Inc()
}

// RecordCleanup records one cleanup run
func (m *Metrics) RecordCleanup(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CleanupRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.CleanupRunsTotal.WithLabelValues("success").Inc()
	m.SessionsCleanedTotal.Add(float64(removed))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the mux route template so path parameters do not explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
