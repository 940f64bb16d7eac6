package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/composedeck/internal/domain"
	"github.com/splax/composedeck/internal/service/project"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "composedeck",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}))

		r.requestLatency = registerHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "composedeck",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}))

		r.rateLimitHits = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "composedeck",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.provisionTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "composedeck",
			Subsystem: "projects",
			Name:      "provision_total",
			Help:      "Project create and update attempts by outcome",
		}, []string{"mode", "outcome"}))

		r.metricsInitialized = true
	})
}

// registerCounterVec registers c, or returns the collector already registered
// under the same descriptor.
func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
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

func registerHistogramVec(h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
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

func (r *Router) recordProvision(mode domain.ProvisionMode, err error) {
	if !r.metricsInitialized {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case project.IsKind(err, project.KindConflict):
		outcome = "conflict"
	case project.IsKind(err, project.KindUnavailable):
		outcome = "unavailable"
	default:
		outcome = "rejected"
	}
	r.provisionTotal.With(prometheus.Labels{"mode": mode.String(), "outcome": outcome}).Inc()
}
