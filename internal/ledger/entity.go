// AngelaMos | 2026
// entity.go

package ledger

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type EntryType string

const (
	EntryEarnPass        EntryType = "EARN_PASS"
	EntryBonus           EntryType = "BONUS"
	EntryAccessCodeBonus EntryType = "ACCESS_CODE_BONUS"
	EntryHintPenalty     EntryType = "HINT_PENALTY"
	EntryRevealPenalty   EntryType = "REVEAL_PENALTY"
)

func (t EntryType) IsCredit() bool {
	switch t {
	case EntryEarnPass, EntryBonus, EntryAccessCodeBonus:
		return true
	}
	return false
}

func (t EntryType) IsDebit() bool {
	switch t {
	case EntryHintPenalty, EntryRevealPenalty:
		return true
	}
	return false
}

// Entry is an append-only ledger row. Amount is signed: credits positive,
// debits negative.
type Entry struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Amount       int64          `db:"amount"`
	Type         EntryType      `db:"type"`
	Description  string         `db:"description"`
	Metadata     types.JSONText `db:"metadata"`
	BalanceAfter int64          `db:"balance_after"`
	CreatedAt    time.Time      `db:"created_at"`
}

type TypeTotal struct {
	Type    EntryType `db:"type"`
	Entries int64     `db:"entries"`
	Amount  int64     `db:"amount"`
}

// Drift is a user whose materialised balance disagrees with the ledger.
type Drift struct {
	UserID    string `db:"user_id"`
	XP        int64  `db:"xp"`
	LedgerSum int64  `db:"ledger_sum"`
}
