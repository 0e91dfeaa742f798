// AngelaMos | 2026
// dto.go

package user

import (
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/rank"
)

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN user admin"`
}

// ListUsersParams filters the admin listing. Plan matches the effective
// plan, so FREE includes users whose grant lapsed or was revoked.
type ListUsersParams struct {
	core.PageParams
	Search string
	Role   string
	Plan   string
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountResponse struct {
	UserResponse
	Plan string    `json:"plan"`
	XP   int64     `json:"xp"`
	Rank rank.Rank `json:"rank"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
	}
}

func ToAccountResponses(accounts []Account, now time.Time) []AccountResponse {
	out := make([]AccountResponse, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		out[i] = AccountResponse{
			UserResponse: ToUserResponse(&a.User),
			Plan:         a.EffectivePlan(now),
			XP:           a.XP,
			Rank:         rank.Calculate(a.XP),
		}
	}
	return out
}
