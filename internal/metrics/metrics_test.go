// AngelaMos | 2026
// metrics_test.go

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncLedgerEntryUsesAbsoluteAmount(t *testing.T) {
	beforeCount := testutil.ToFloat64(ledgerEntriesTotal.WithLabelValues("hint_penalty"))
	beforeXP := testutil.ToFloat64(ledgerXPTotal.WithLabelValues("hint_penalty"))

	IncLedgerEntry("HINT_PENALTY", -20)

	assert.Equal(t, beforeCount+1, testutil.ToFloat64(ledgerEntriesTotal.WithLabelValues("hint_penalty")))
	assert.Equal(t, beforeXP+20, testutil.ToFloat64(ledgerXPTotal.WithLabelValues("hint_penalty")))
}

func TestIncAccessDecision(t *testing.T) {
	before := testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("week", "denied"))
	IncAccessDecision("week", false)
	assert.Equal(t, before+1, testutil.ToFloat64(accessDecisionsTotal.WithLabelValues("week", "denied")))
}

func TestNorm(t *testing.T) {
	assert.Equal(t, "unknown", norm("  "))
	assert.Equal(t, "pro", norm(" PRO "))
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	MustRegister()
	MustRegister()

	IncRateLimited("spend")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited_total")
}
