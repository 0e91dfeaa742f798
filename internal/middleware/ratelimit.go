// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/metrics"
)

type RateLimitConfig struct {
	// Scope labels metrics and audit events, e.g. "global" or "spend".
	Scope      string
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	Sink       audit.Sink
}

// RateLimiter enforces a GCRA limit in Redis. While Redis is unreachable
// each instance falls back to its own token buckets.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *bucketSet
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Scope == "" {
		cfg.Scope = "global"
	}
	if cfg.Sink == nil {
		cfg.Sink = audit.Nop{}
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: newBucketSet(cfg.Limit),
		cfg:      cfg,
	}
}

type verdict struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	resetAfter time.Duration
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.BypassFunc != nil && rl.cfg.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)

		v, err := rl.check(r.Context(), key)
		if err != nil {
			if !rl.cfg.FailOpen {
				core.JSONError(w, core.NewAppError(
					http.StatusServiceUnavailable,
					"RATE_LIMIT_UNAVAILABLE",
					"rate limiter unavailable",
				))
				return
			}
			slog.Warn("rate limiter error, failing open",
				"scope", rl.cfg.Scope,
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		rl.writeHeaders(w, v)

		if !v.allowed {
			rl.reject(w, r, key, v)
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errUnusableLimit = errors.New("rate limit needs a positive rate and period")

func (rl *RateLimiter) check(ctx context.Context, key string) (verdict, error) {
	if rl.cfg.Limit.Rate <= 0 || rl.cfg.Limit.Period <= 0 {
		return verdict{}, errUnusableLimit
	}

	res, err := rl.redis.Allow(ctx, key, rl.cfg.Limit)
	if err == nil {
		return verdict{
			allowed:    res.Allowed > 0,
			remaining:  res.Remaining,
			retryAfter: res.RetryAfter,
			resetAfter: res.ResetAfter,
		}, nil
	}

	return rl.fallback.take(key, time.Now()), nil
}

func (rl *RateLimiter) writeHeaders(w http.ResponseWriter, v verdict) {
	limit := rl.cfg.Limit
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	h.Set("X-RateLimit-Reset",
		strconv.FormatInt(time.Now().Add(v.resetAfter).Unix(), 10))
	h.Set("RateLimit-Policy",
		fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit",
		fmt.Sprintf("%d;t=%d", v.remaining, int(v.resetAfter.Seconds())))
}

func (rl *RateLimiter) reject(
	w http.ResponseWriter,
	r *http.Request,
	key string,
	v verdict,
) {
	metrics.IncRateLimited(rl.cfg.Scope)

	e := audit.NewEvent(audit.KindRateLimited, GetUserID(r.Context()))
	e.Path = r.URL.Path
	e.RemoteAddr = r.RemoteAddr
	rl.cfg.Sink.Record(r.Context(),
		e.With("scope", rl.cfg.Scope).With("key", key))

	retry := max(int(v.retryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retry))

	core.JSONError(w, core.NewAppError(
		http.StatusTooManyRequests,
		"RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retry),
	))
}

// bucketSet holds one token bucket per key. Idle buckets are swept on
// access so no janitor goroutine is needed.
type bucketSet struct {
	mu        sync.Mutex
	limit     redis_rate.Limit
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newBucketSet(limit redis_rate.Limit) *bucketSet {
	return &bucketSet{
		limit:     limit,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (s *bucketSet) take(key string, now time.Time) verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > bucketIdleTTL {
		for k, b := range s.buckets {
			if now.Sub(b.seen) > bucketIdleTTL {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	perSecond := float64(s.limit.Rate) / s.limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(perSecond), s.limit.Burst)}
		s.buckets[key] = b
	}
	b.seen = now

	allowed := b.lim.AllowN(now, 1)
	v := verdict{
		allowed:    allowed,
		remaining:  max(int(b.lim.TokensAt(now)), 0),
		resetAfter: interval,
		retryAfter: -1,
	}
	if !allowed {
		v.retryAfter = interval
	}
	return v
}

// Window builds a limit from the rate_limit config section. A burst below
// one defaults to the request count.
func Window(requests, burst int, period time.Duration) redis_rate.Limit {
	if burst < 1 {
		burst = requests
	}
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: period}
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

// KeyByUser keys authenticated requests by subject. Anonymous requests
// fall back to the client address.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

// KeyByUserAndEndpoint keys on the matched chi route pattern when the
// limiter is mounted inside a router group, so one user shares a bucket
// across every question on the same route. Outside a router it falls back
// to the path with identifiers collapsed.
func KeyByUserAndEndpoint(r *http.Request) string {
	endpoint := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		endpoint = rctx.RoutePattern()
	}
	if endpoint == "" {
		endpoint = normalizeEndpoint(r.URL.Path)
	}
	return KeyByUser(r) + ":endpoint:" + r.Method + " " + endpoint
}

// clientIP trusts the last X-Forwarded-For hop, which is the one our own
// proxy appended.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isIdentifier(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// isIdentifier matches UUIDs, ULIDs and plain numbers.
func isIdentifier(s string) bool {
	switch len(s) {
	case 0:
		return false
	case 36:
		if s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-' {
			return true
		}
	case 26:
		if strings.IndexFunc(s, notCrockford) < 0 {
			return true
		}
	}
	return strings.IndexFunc(s, notDigit) < 0
}

func notDigit(c rune) bool { return c < '0' || c > '9' }

func notCrockford(c rune) bool {
	return notDigit(c) && (c < 'A' || c > 'Z')
}
