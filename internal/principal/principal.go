// AngelaMos | 2026
// principal.go

// Package principal carries the verified identity of a caller.
package principal

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("role %q: %w", s, core.ErrInvalidInput)
}

func (r Role) String() string {
	return string(r)
}

type Principal struct {
	UserID string
	Role   Role
}

func New(userID string, role Role) Principal {
	return Principal{UserID: userID, Role: role}
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("principal without user id: %w", core.ErrUnauthorized)
	}
	if p.Role != RoleUser && p.Role != RoleAdmin {
		return fmt.Errorf("principal role %q: %w", p.Role, core.ErrUnauthorized)
	}
	return nil
}

type contextKey struct{}

func WithContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
