package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

// registerCounter registers c, or returns the collector already registered under the same name.
func registerCounter(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensetracker",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}))

		latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expensetracker",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"})
		if err := prometheus.Register(latency); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
					latency = existing
				}
			}
		}
		r.requestLatency = latency

		r.rateLimitHits = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensetracker",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.loginAttempts = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensetracker",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}))

		r.authRejections = registerCounter(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensetracker",
			Subsystem: "auth",
			Name:      "auth_rejections_total",
			Help:      "Bearer tokens rejected by reason",
		}, []string{"reason"}))

		r.metricsInitialized = true
	})
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) recordLogin(outcome string) {
	if !r.metricsInitialized {
		return
	}
	r.loginAttempts.WithLabelValues(outcome).Inc()
}

func (r *Router) recordAuthRejection(reason string) {
	if !r.metricsInitialized {
		return
	}
	r.authRejections.WithLabelValues(reason).Inc()
}
