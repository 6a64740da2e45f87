package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request metrics live under toolmart_api_*. Tests build several routers in
// one process against the default registerer, so an already-registered
// collector is adopted instead of treated as a failure.
func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		latencyBuckets := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

		r.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolmart",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Requests served, by method, route, and status",
		}, []string{"method", "route", "status"})

		r.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolmart",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Handler latency, by method, route, and status",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"})

		r.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolmart",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests refused by the per-route rate limits",
		}, []string{"route", "key"})

		for _, collector := range []prometheus.Collector{r.requestTotal, r.requestLatency, r.rateLimitHits} {
			err := prometheus.Register(collector)
			if err == nil {
				continue
			}
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				continue
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				if collector == r.requestTotal {
					r.requestTotal = existing
				} else {
					r.rateLimitHits = existing
				}
			case *prometheus.HistogramVec:
				r.requestLatency = existing
			}
		}
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
