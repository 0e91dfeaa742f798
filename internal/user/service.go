// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type Service struct {
	repo Repository
	sink audit.Sink
}

func NewService(repo Repository, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{repo: repo, sink: sink}
}

func (s *Service) GetMe(ctx context.Context, p principal.Principal) (*User, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, p.UserID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Ensure registers a token subject. New users start as USER.
func (s *Service) Ensure(ctx context.Context, id, email, name string) (*User, error) {
	if id == "" || email == "" {
		return nil, fmt.Errorf("ensure user: id and email required: %w", core.ErrInvalidInput)
	}
	u := &User{
		ID:    id,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  name,
		Role:  principal.RoleUser,
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Provision makes sure the token subject has a row and returns the
// principal with the stored role. The token's role claim only seeds the
// row on first sight, so a demotion takes effect on the next request.
func (s *Service) Provision(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	role, err := s.repo.Provision(ctx, p.UserID, p.Role)
	if err != nil {
		return principal.Principal{}, err
	}
	if role != p.Role {
		slog.Debug("token role overridden by stored role",
			"user_id", p.UserID,
			"token_role", p.Role.String(),
			"stored_role", role.String(),
		)
	}
	return principal.New(p.UserID, role), nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]Account, int, error) {
	if params.Role != "" {
		role, err := principal.ParseRole(params.Role)
		if err != nil {
			return nil, 0, err
		}
		params.Role = role.String()
	}
	if params.Plan != "" {
		plan, err := entitlement.ParsePlan(params.Plan)
		if err != nil {
			return nil, 0, err
		}
		params.Plan = string(plan)
	}
	return s.repo.List(ctx, params)
}

// UpdateUserRole changes a user's role. Admins cannot demote themselves,
// which keeps at least the acting admin in place.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	actor principal.Principal,
	id, role string,
) (*User, error) {
	next, err := principal.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if actor.UserID == id && next != actor.Role {
		return nil, fmt.Errorf("update role: cannot change own role: %w", core.ErrForbidden)
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.UpdateRole(ctx, id, next)
	if err != nil {
		return nil, err
	}

	if before.Role != next {
		slog.Info("user role changed",
			"user_id", id,
			"from", before.Role.String(),
			"to", next.String(),
			"by", actor.UserID,
		)
		s.sink.Record(ctx, audit.NewEvent(audit.KindRoleChanged, id).
			With("from", before.Role.String()).
			With("to", next.String()).
			With("by", actor.UserID))
	}

	return u, nil
}
