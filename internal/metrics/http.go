// AngelaMos | 2026
// http.go

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(accessDecisionsTotal, rateLimitedTotal, contentCacheTotal)
}

var (
	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Access gate decisions by resource kind and result.",
		},
		[]string{"resource", "result"}, // result="allowed"|"denied"
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"scope"},
	)

	contentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_requests_total",
			Help: "Content catalog cache hits and misses.",
		},
		[]string{"kind", "result"},
	)
)

func IncAccessDecision(resource string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	accessDecisionsTotal.WithLabelValues(norm(resource), result).Inc()
}

func IncRateLimited(scope string) {
	rateLimitedTotal.WithLabelValues(norm(scope)).Inc()
}

func IncContentCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	contentCacheTotal.WithLabelValues(norm(kind), result).Inc()
}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
