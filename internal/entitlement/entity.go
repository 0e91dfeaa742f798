// AngelaMos | 2026
// entity.go

package entitlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type Plan string

const (
	PlanFree  Plan = "FREE"
	PlanBasic Plan = "BASIC"
	PlanPro   Plan = "PRO"
	// PlanAdmin is synthetic. It is never stored.
	PlanAdmin Plan = "ADMIN"
)

func ParsePlan(s string) (Plan, error) {
	switch p := Plan(strings.ToUpper(strings.TrimSpace(s))); p {
	case PlanFree, PlanBasic, PlanPro:
		return p, nil
	}
	return "", fmt.Errorf("unknown plan %q: %w", s, core.ErrInvalidInput)
}

// Ordinal orders plans by price.
func (p Plan) Ordinal() int {
	switch p {
	case PlanBasic:
		return 1
	case PlanPro:
		return 2
	case PlanAdmin:
		return 3
	}
	return 0
}

func (p Plan) IsPaid() bool {
	return p == PlanBasic || p == PlanPro
}

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

type Entitlement struct {
	UserID        string     `db:"user_id"`
	Plan          Plan       `db:"plan"`
	Status        Status     `db:"status"`
	GrantedAt     time.Time  `db:"granted_at"`
	ExpiresAt     *time.Time `db:"expires_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason *string    `db:"revoked_reason"`
	GrantedBy     *string    `db:"granted_by_user_id"`
	GrantedReason string     `db:"granted_reason"`
	Version       int64      `db:"version"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Lapsed reports an ACTIVE row whose expiry has passed. Expiry is never
// written back; readers treat it as EXPIRED.
func (e *Entitlement) Lapsed(now time.Time) bool {
	return e.Status == StatusActive && e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

type AccessCode struct {
	ID                 string     `db:"id"`
	CodeHash           string     `db:"code_hash"`
	Plan               Plan       `db:"plan"`
	DurationDays       *int       `db:"duration_days"`
	MaxRedemptions     int        `db:"max_redemptions"`
	CurrentRedemptions int        `db:"current_redemptions"`
	BonusXP            int64      `db:"bonus_xp"`
	ExpiresAt          *time.Time `db:"expires_at"`
	IsActive           bool       `db:"is_active"`
	CreatedBy          *string    `db:"created_by"`
	CreatedAt          time.Time  `db:"created_at"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case RequestPending, RequestApproved, RequestRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q: %w", s, core.ErrInvalidInput)
}

type AccessRequest struct {
	ID            string        `db:"id"`
	UserID        string        `db:"user_id"`
	RequestedPlan Plan          `db:"requested_plan"`
	Message       string        `db:"message"`
	Status        RequestStatus `db:"status"`
	ReviewedBy    *string       `db:"reviewed_by"`
	ReviewedAt    *time.Time    `db:"reviewed_at"`
	ReviewNote    string        `db:"review_note"`
	CreatedAt     time.Time     `db:"created_at"`
}
