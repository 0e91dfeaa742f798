// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

// User is the directory entry behind a token subject. Credentials live with
// the identity provider, not here.
type User struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Name      string         `db:"name"`
	Role      principal.Role `db:"role"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == principal.RoleAdmin
}

// Account is a user joined with the entitlement row and balance that admin
// listings show. Plan and Status are nil for users on the implicit free plan.
type Account struct {
	User
	Plan      *string    `db:"plan"`
	Status    *string    `db:"entitlement_status"`
	ExpiresAt *time.Time `db:"expires_at"`
	XP        int64      `db:"xp"`
}

// EffectivePlan mirrors entitlement resolution: admins are ADMIN, anything
// not active and unexpired falls back to FREE.
func (a *Account) EffectivePlan(now time.Time) string {
	if a.IsAdmin() {
		return "ADMIN"
	}
	if a.Plan == nil || a.Status == nil || *a.Status != "ACTIVE" {
		return string(entitlement.PlanFree)
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return string(entitlement.PlanFree)
	}
	return *a.Plan
}
