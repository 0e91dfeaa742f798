// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("down") }

func serve(t *testing.T, h *Handler, path string) (int, ReadinessResponse) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckFunc(ok)},
		Check{Name: "redis", Checker: CheckFunc(ok)},
	)

	code, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Len(t, body.Checks, 2)
}

func TestReadinessRequiredFailure(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckFunc(fail)},
		Check{Name: "redis", Checker: CheckFunc(ok)},
	)

	code, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body.Status)
	assert.False(t, body.Checks[0].Healthy)
}

func TestReadinessOptionalFailureIsDegraded(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckFunc(ok)},
		Check{Name: "audit_broker", Checker: CheckFunc(fail), Optional: true},
	)

	code, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
}

func TestReadinessMissingChecker(t *testing.T) {
	code, body := serve(t, NewHandler(Check{Name: "database"}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "database checker not configured", body.Checks[0].Message)
}

func TestShutdownFlipsProbes(t *testing.T) {
	h := NewHandler(Check{Name: "database", Checker: CheckFunc(ok)})
	h.SetShutdown(true)

	code, body := serve(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting_down", body.Status)

	code, _ = serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadinessCheckTimeout(t *testing.T) {
	slow := CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h := NewHandler(Check{Name: "redis", Checker: slow, Timeout: 10 * time.Millisecond})

	code, body := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "timed out after 10ms", body.Checks[0].Message)
}

func TestLivenessReportsUptime(t *testing.T) {
	code, body := serve(t, NewHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Uptime)
	assert.Empty(t, body.Checks)
}

func TestSummarizeRequiredFailureWins(t *testing.T) {
	checks := []Check{{Name: "a", Optional: true}, {Name: "b"}}
	results := []HealthCheck{{Name: "a"}, {Name: "b"}}
	assert.Equal(t, "unavailable", summarize(checks, results))
}
