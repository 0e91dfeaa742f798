// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/ledger"
	"github.com/carterperez-dev/coursegate/internal/metrics"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type RepositoryFactory func(db core.DBTX) Repository

type Service struct {
	db      core.DBTX
	tx      core.TxRunner
	repoFor RepositoryFactory
	tiers   Tiers
	sink    audit.Sink
	xp      XPLedger
	now     func() time.Time
}

// XPLedger credits XP inside a caller's transaction.
type XPLedger interface {
	EarnTx(ctx context.Context, tx core.DBTX, in ledger.EarnInput) (*ledger.EarnResult, error)
}

func NewService(
	db core.DBTX,
	tx core.TxRunner,
	repoFor RepositoryFactory,
	tiers Tiers,
	sink audit.Sink,
) *Service {
	if repoFor == nil {
		repoFor = NewRepository
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{
		db:      db,
		tx:      tx,
		repoFor: repoFor,
		tiers:   tiers,
		sink:    sink,
		now:     time.Now,
	}
}

// WithLedger lets access code redemptions credit the code's bonus XP.
func (s *Service) WithLedger(l XPLedger) *Service {
	s.xp = l
	return s
}

func (s *Service) Tiers() Tiers {
	return s.tiers
}

// Resolution is the caller's effective entitlement at one instant.
type Resolution struct {
	UserID        string
	Plan          Plan
	EffectivePlan Plan
	Status        Status
	HasAccess     bool
	Tier          Tier
	GrantedAt     *time.Time
	ExpiresAt     *time.Time
	IsAdmin       bool
	Version       int64
}

// Resolve is a pure read. Expired grants are reported as EXPIRED without
// being written back.
func (s *Service) Resolve(ctx context.Context, p principal.Principal) (*Resolution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		return &Resolution{
			UserID:        p.UserID,
			Plan:          PlanAdmin,
			EffectivePlan: PlanAdmin,
			Status:        StatusActive,
			HasAccess:     true,
			Tier:          s.tiers.For(PlanAdmin),
			IsAdmin:       true,
		}, nil
	}

	ent, err := s.repoFor(s.db).Get(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			free := s.tiers.For(PlanFree)
			return &Resolution{
				UserID:        p.UserID,
				Plan:          PlanFree,
				EffectivePlan: PlanFree,
				Status:        StatusActive,
				HasAccess:     free.HasAccess,
				Tier:          free,
			}, nil
		}
		return nil, err
	}

	return s.resolveRow(ent), nil
}

func (s *Service) resolveRow(ent *Entitlement) *Resolution {
	res := &Resolution{
		UserID:    ent.UserID,
		Plan:      ent.Plan,
		Status:    ent.Status,
		GrantedAt: &ent.GrantedAt,
		ExpiresAt: ent.ExpiresAt,
		Version:   ent.Version,
	}

	if ent.Lapsed(s.now()) {
		res.Status = StatusExpired
	}

	if res.Status == StatusActive {
		res.EffectivePlan = ent.Plan
		res.Tier = s.tiers.For(ent.Plan)
		res.HasAccess = true
		return res
	}

	res.EffectivePlan = PlanFree
	res.Tier = s.tiers.For(PlanFree)
	res.HasAccess = false
	return res
}

// Inspect returns the stored row the way an admin sees it.
func (s *Service) Inspect(ctx context.Context, userID string) (*Entitlement, *Resolution, error) {
	ent, err := s.repoFor(s.db).Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return ent, s.resolveRow(ent), nil
}

type GrantInput struct {
	UserID          string
	Plan            Plan
	GrantedBy       string
	Reason          string
	ExpiresAt       *time.Time
	ExpectedVersion *int64
}

type RevokeInput struct {
	UserID          string
	Reason          string
	RevokedBy       string
	ExpectedVersion *int64
}

func (s *Service) Grant(ctx context.Context, in GrantInput) (*Entitlement, error) {
	ctx, span := core.StartSpan(ctx, "entitlement.Grant",
		attribute.String("user.id", in.UserID),
		attribute.String("entitlement.plan", string(in.Plan)),
	)
	defer span.End()

	var ent *Entitlement
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		var txErr error
		ent, txErr = s.GrantTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.recordChange(ctx, "grant", in.GrantedBy, ent, in.Reason)
	return ent, nil
}

// GrantTx upserts under the row lock of the caller's transaction.
func (s *Service) GrantTx(ctx context.Context, tx core.DBTX, in GrantInput) (*Entitlement, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("grant: missing user id: %w", core.ErrInvalidInput)
	}
	switch in.Plan {
	case PlanFree, PlanBasic, PlanPro:
	default:
		return nil, fmt.Errorf("grant: plan %q: %w", in.Plan, core.ErrInvalidInput)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("grant: expiry in the past: %w", core.ErrInvalidInput)
	}

	repo := s.repoFor(tx)

	exists, err := repo.UserExists(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("grant: user: %w", core.ErrNotFound)
	}

	current, err := repo.GetForUpdate(ctx, in.UserID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	if err := checkVersion(current, in.ExpectedVersion); err != nil {
		return nil, err
	}

	var grantedBy *string
	if in.GrantedBy != "" {
		grantedBy = &in.GrantedBy
	}

	return repo.Upsert(ctx, UpsertParams{
		UserID:    in.UserID,
		Plan:      in.Plan,
		ExpiresAt: in.ExpiresAt,
		GrantedBy: grantedBy,
		Reason:    in.Reason,
	})
}

func (s *Service) Revoke(ctx context.Context, in RevokeInput) (*Entitlement, error) {
	ctx, span := core.StartSpan(ctx, "entitlement.Revoke",
		attribute.String("user.id", in.UserID),
	)
	defer span.End()

	var ent *Entitlement
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.repoFor(tx)

		current, err := repo.GetForUpdate(ctx, in.UserID)
		if err != nil {
			return err
		}
		if err := checkVersion(current, in.ExpectedVersion); err != nil {
			return err
		}

		ent, err = repo.MarkRevoked(ctx, in.UserID, in.Reason)
		return err
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.recordChange(ctx, "revoke", in.RevokedBy, ent, in.Reason)
	return ent, nil
}

// checkVersion treats a missing row as version 0.
func checkVersion(current *Entitlement, expected *int64) error {
	if expected == nil {
		return nil
	}
	var version int64
	if current != nil {
		version = current.Version
	}
	if version != *expected {
		return fmt.Errorf(
			"entitlement version is %d, expected %d: %w",
			version,
			*expected,
			core.ErrConflict,
		)
	}
	return nil
}

func (s *Service) recordChange(
	ctx context.Context,
	action, actor string,
	ent *Entitlement,
	reason string,
) {
	metrics.IncEntitlementChange(action, string(ent.Plan))

	slog.Info("entitlement changed",
		"action", action,
		"user_id", ent.UserID,
		"plan", ent.Plan,
		"status", ent.Status,
		"version", ent.Version,
		"actor", actor,
	)

	e := audit.NewEvent(audit.KindEntitlementChanged, ent.UserID)
	s.sink.Record(ctx, e.
		With("action", action).
		With("plan", string(ent.Plan)).
		With("actor", actor).
		With("reason", reason))
}
