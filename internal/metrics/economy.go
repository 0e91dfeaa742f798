// AngelaMos | 2026
// economy.go

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerEntriesTotal,
		ledgerXPTotal,
		spendRejectedTotal,
		codeRedemptionsTotal,
		entitlementChangesTotal,
	)
}

var (
	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Points ledger entries appended, by entry type.",
		},
		[]string{"type"},
	)

	ledgerXPTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_xp_total",
			Help: "Absolute XP moved through the ledger, by entry type.",
		},
		[]string{"type"},
	)

	spendRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_spend_rejected_total",
			Help: "Spends rejected for insufficient funds, by entry type.",
		},
		[]string{"type"},
	)

	codeRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_code_redemptions_total",
			Help: "Access code redemption attempts by result.",
		},
		[]string{"result"}, // success, invalid, exhausted, expired, duplicate
	)

	entitlementChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_changes_total",
			Help: "Entitlement grants and revokes by plan.",
		},
		[]string{"action", "plan"},
	)
)

func IncLedgerEntry(entryType string, amount int64) {
	ledgerEntriesTotal.WithLabelValues(norm(entryType)).Inc()
	if amount < 0 {
		amount = -amount
	}
	ledgerXPTotal.WithLabelValues(norm(entryType)).Add(float64(amount))
}

func IncSpendRejected(entryType string) {
	spendRejectedTotal.WithLabelValues(norm(entryType)).Inc()
}

func IncCodeRedemption(result string) {
	codeRedemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncEntitlementChange(action, plan string) {
	entitlementChangesTotal.WithLabelValues(norm(action), norm(plan)).Inc()
}
