// AngelaMos | 2026
// dto.go

package ledger

import (
	"encoding/json"
	"time"

	"github.com/carterperez-dev/coursegate/internal/rank"
)

type BonusRequest struct {
	Amount      int64  `json:"amount"      validate:"required,gt=0,lte=100000"`
	Type        string `json:"type"        validate:"omitempty,oneof=BONUS"`
	Description string `json:"description" validate:"max=255"`
}

type EntryResponse struct {
	ID           string          `json:"id"`
	Amount       int64           `json:"amount"`
	Type         EntryType       `json:"type"`
	Description  string          `json:"description"`
	Metadata     json.RawMessage `json:"metadata"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

type BalanceResponse struct {
	UserID string    `json:"user_id"`
	XP     int64     `json:"xp"`
	Rank   rank.Rank `json:"rank"`
}

type EarnResponse struct {
	Entry           EntryResponse `json:"entry"`
	Balance         int64         `json:"balance"`
	PreviousBalance int64         `json:"previous_balance"`
}

type TypeTotalResponse struct {
	Type    EntryType `json:"type"`
	Entries int64     `json:"entries"`
	Amount  int64     `json:"amount"`
}

type DriftResponse struct {
	UserID    string `json:"user_id"`
	XP        int64  `json:"xp"`
	LedgerSum int64  `json:"ledger_sum"`
}

type EconomyStatsResponse struct {
	Totals      []TypeTotalResponse `json:"totals"`
	Credited    int64               `json:"credited"`
	Debited     int64               `json:"debited"`
	Circulating int64               `json:"circulating"`
	Drifts      []DriftResponse     `json:"drifts"`
}

func ToEntryResponse(e *Entry) EntryResponse {
	meta := json.RawMessage(e.Metadata)
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}
	return EntryResponse{
		ID:           e.ID,
		Amount:       e.Amount,
		Type:         e.Type,
		Description:  e.Description,
		Metadata:     meta,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt,
	}
}

func ToEntryResponseList(entries []Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = ToEntryResponse(&entries[i])
	}
	return out
}

func ToEconomyStatsResponse(s *EconomyStats) EconomyStatsResponse {
	resp := EconomyStatsResponse{
		Totals:      make([]TypeTotalResponse, len(s.Totals)),
		Credited:    s.Credited,
		Debited:     s.Debited,
		Circulating: s.Credited - s.Debited,
		Drifts:      make([]DriftResponse, len(s.Drifts)),
	}
	for i, t := range s.Totals {
		resp.Totals[i] = TypeTotalResponse(t)
	}
	for i, d := range s.Drifts {
		resp.Drifts[i] = DriftResponse(d)
	}
	return resp
}
