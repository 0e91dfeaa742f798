// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultCheckTimeout = 2 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Check is a named dependency. A failing Optional check marks readiness
// degraded without taking the instance out of rotation.
type Check struct {
	Name     string
	Checker  Checker
	Optional bool
	Timeout  time.Duration
}

type Handler struct {
	checks   []Check
	started  time.Time
	shutdown atomic.Bool
}

func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks, started: time.Now()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// SetShutdown flips both probes to 503 so the load balancer drains the
// instance before the listener closes.
func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		writeProbe(w, http.StatusServiceUnavailable, ReadinessResponse{Status: statusShuttingDown})
		return
	}
	writeProbe(w, http.StatusOK, ReadinessResponse{
		Status: statusOK,
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		writeProbe(w, http.StatusServiceUnavailable, ReadinessResponse{Status: statusShuttingDown})
		return
	}

	results := probeAll(r.Context(), h.checks)
	status := summarize(h.checks, results)

	code := http.StatusOK
	if status == statusUnavailable {
		code = http.StatusServiceUnavailable
	}
	writeProbe(w, code, ReadinessResponse{Status: status, Checks: results})
}

const (
	statusOK           = "ok"
	statusDegraded     = "degraded"
	statusUnavailable  = "unavailable"
	statusShuttingDown = "shutting_down"
)

// summarize folds check results into one status. Any failed required check
// wins over a failed optional one.
func summarize(checks []Check, results []HealthCheck) string {
	status := statusOK
	for i, res := range results {
		switch {
		case res.Healthy:
		case checks[i].Optional:
			if status == statusOK {
				status = statusDegraded
			}
		default:
			return statusUnavailable
		}
	}
	return status
}

type indexedResult struct {
	i   int
	res HealthCheck
}

// probeAll pings every check concurrently, each under its own deadline, and
// returns results in registration order.
func probeAll(ctx context.Context, checks []Check) []HealthCheck {
	out := make(chan indexedResult, len(checks))
	for i, c := range checks {
		go func() { out <- indexedResult{i: i, res: probe(ctx, c)} }()
	}

	results := make([]HealthCheck, len(checks))
	for range checks {
		r := <-out
		results[r.i] = r.res
	}
	return results
}

func probe(ctx context.Context, c Check) HealthCheck {
	res := HealthCheck{Name: c.Name, Optional: c.Optional}
	if c.Checker == nil {
		res.Message = c.Name + " checker not configured"
		return res
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Checker.Ping(ctx)
	res.Latency = time.Since(start).String()

	switch {
	case err == nil:
		res.Healthy = true
	case ctx.Err() == context.DeadlineExceeded:
		res.Message = "timed out after " + timeout.String()
	default:
		res.Message = "ping failed"
	}
	return res
}

func writeProbe(w http.ResponseWriter, code int, body ReadinessResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(body)
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Uptime string        `json:"uptime,omitempty"`
	Checks []HealthCheck `json:"checks,omitempty"`
}

type HealthCheck struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
