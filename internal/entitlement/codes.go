// AngelaMos | 2026
// codes.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/ledger"
	"github.com/carterperez-dev/coursegate/internal/metrics"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

const accessCodeGroups = 4

type RedeemReason string

const (
	RedeemInvalidCode RedeemReason = "INVALID_CODE"
	RedeemExhausted   RedeemReason = "EXHAUSTED"
	RedeemExpired     RedeemReason = "EXPIRED"
)

// RedeemError is a refused redemption. Nothing was written.
type RedeemError struct {
	Reason RedeemReason
}

func (e *RedeemError) Error() string {
	switch e.Reason {
	case RedeemExhausted:
		return "access code has no redemptions left"
	case RedeemExpired:
		return "access code has expired"
	}
	return "access code is invalid"
}

// AppError maps an unknown code to 400 and a spent or lapsed one to 410.
func (e *RedeemError) AppError() *core.AppError {
	status := http.StatusBadRequest
	if e.Reason == RedeemExhausted || e.Reason == RedeemExpired {
		status = http.StatusGone
	}
	return &core.AppError{
		Code:       string(e.Reason),
		Message:    e.Error(),
		StatusCode: status,
		Err:        e,
	}
}

type CreateCodeInput struct {
	Plan           Plan
	MaxRedemptions int
	DurationDays   *int
	BonusXP        int64
	ExpiresAt      *time.Time
	CreatedBy      string
}

// CreatedCode holds the plaintext code. It is never stored and cannot be
// recovered later.
type CreatedCode struct {
	Code       string
	AccessCode *AccessCode
}

func (s *Service) CreateAccessCode(ctx context.Context, in CreateCodeInput) (*CreatedCode, error) {
	if !in.Plan.IsPaid() {
		return nil, fmt.Errorf("create access code: plan %q: %w", in.Plan, core.ErrInvalidInput)
	}
	if in.MaxRedemptions < 1 {
		return nil, fmt.Errorf(
			"create access code: max redemptions must be positive: %w",
			core.ErrInvalidInput,
		)
	}
	if in.DurationDays != nil && *in.DurationDays < 1 {
		return nil, fmt.Errorf(
			"create access code: duration must be positive: %w",
			core.ErrInvalidInput,
		)
	}

	if in.BonusXP < 0 {
		return nil, fmt.Errorf("create access code: bonus xp is negative: %w", core.ErrInvalidInput)
	}
	if in.BonusXP > 0 && s.xp == nil {
		return nil, fmt.Errorf("create access code: no ledger for bonus xp: %w", core.ErrInvalidInput)
	}

	plaintext, err := core.GenerateAccessCode(accessCodeGroups)
	if err != nil {
		return nil, fmt.Errorf("create access code: %w", err)
	}

	code := &AccessCode{
		ID:             uuid.New().String(),
		CodeHash:       core.HashToken(core.NormalizeAccessCode(plaintext)),
		Plan:           in.Plan,
		DurationDays:   in.DurationDays,
		MaxRedemptions: in.MaxRedemptions,
		BonusXP:        in.BonusXP,
		ExpiresAt:      in.ExpiresAt,
	}
	if in.CreatedBy != "" {
		code.CreatedBy = &in.CreatedBy
	}

	if err := s.repoFor(s.db).CreateCode(ctx, code); err != nil {
		return nil, err
	}

	slog.Info("access code created",
		"code_id", code.ID,
		"plan", code.Plan,
		"max_redemptions", code.MaxRedemptions,
		"bonus_xp", code.BonusXP,
		"created_by", in.CreatedBy,
	)

	return &CreatedCode{Code: plaintext, AccessCode: code}, nil
}

type RedeemResult struct {
	Success     bool
	Plan        Plan
	BonusXP     int64
	Entitlement *Entitlement
}

// RedeemAccessCode locks the code row, so concurrent redemptions of the last
// slot serialise and exactly one wins. Every failure rolls back.
func (s *Service) RedeemAccessCode(
	ctx context.Context,
	p principal.Principal,
	code string,
) (*RedeemResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		result *RedeemResult
		codeID string
	)
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		normalized := core.NormalizeAccessCode(code)
		if normalized == "" {
			return &RedeemError{Reason: RedeemInvalidCode}
		}

		repo := s.repoFor(tx)

		ac, err := repo.GetCodeByHashForUpdate(ctx, core.HashToken(normalized))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return &RedeemError{Reason: RedeemInvalidCode}
			}
			return err
		}
		codeID = ac.ID

		now := s.now()
		switch {
		case !ac.IsActive:
			return &RedeemError{Reason: RedeemInvalidCode}
		case ac.ExpiresAt != nil && !now.Before(*ac.ExpiresAt):
			return &RedeemError{Reason: RedeemExpired}
		case ac.CurrentRedemptions >= ac.MaxRedemptions:
			return &RedeemError{Reason: RedeemExhausted}
		}

		if err := s.checkNoDowngrade(ctx, repo, p.UserID, ac.Plan); err != nil {
			return err
		}

		if err := repo.InsertRedemption(ctx, ac.ID, p.UserID); err != nil {
			if errors.Is(err, core.ErrDuplicateKey) {
				return fmt.Errorf("access code already redeemed: %w", core.ErrConflict)
			}
			return err
		}
		if err := repo.IncrementRedemptions(ctx, ac.ID); err != nil {
			return err
		}

		var expiresAt *time.Time
		if ac.DurationDays != nil {
			t := now.AddDate(0, 0, *ac.DurationDays)
			expiresAt = &t
		}

		ent, err := s.GrantTx(ctx, tx, GrantInput{
			UserID:    p.UserID,
			Plan:      ac.Plan,
			Reason:    "access code " + ac.ID,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return err
		}

		bonus, err := s.creditCodeBonus(ctx, tx, p.UserID, ac)
		if err != nil {
			return err
		}

		result = &RedeemResult{Success: true, Plan: ac.Plan, BonusXP: bonus, Entitlement: ent}
		return nil
	})
	if err != nil {
		s.recordRedeemFailure(ctx, p.UserID, codeID, err)
		return nil, err
	}

	metrics.IncCodeRedemption("success")
	s.recordChange(ctx, "redeem", p.UserID, result.Entitlement, "access code "+codeID)

	return result, nil
}

// creditCodeBonus books the code's bonus XP in the redemption transaction, so
// a failed grant never leaves XP behind.
func (s *Service) creditCodeBonus(
	ctx context.Context,
	tx core.DBTX,
	userID string,
	ac *AccessCode,
) (int64, error) {
	if ac.BonusXP <= 0 || s.xp == nil {
		return 0, nil
	}
	_, err := s.xp.EarnTx(ctx, tx, ledger.EarnInput{
		UserID:      userID,
		Amount:      ac.BonusXP,
		Type:        ledger.EntryAccessCodeBonus,
		Description: "access code bonus",
		Metadata:    map[string]any{"code_id": ac.ID, "plan": string(ac.Plan)},
	})
	if err != nil {
		return 0, fmt.Errorf("credit access code bonus: %w", err)
	}
	return ac.BonusXP, nil
}

// checkNoDowngrade refuses a code that would replace an active higher plan.
func (s *Service) checkNoDowngrade(
	ctx context.Context,
	repo Repository,
	userID string,
	plan Plan,
) error {
	current, err := repo.GetForUpdate(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	res := s.resolveRow(current)
	if res.HasAccess && res.EffectivePlan.Ordinal() > plan.Ordinal() {
		return fmt.Errorf(
			"already on %s, code grants %s: %w",
			res.EffectivePlan,
			plan,
			core.ErrConflict,
		)
	}
	return nil
}

func (s *Service) recordRedeemFailure(ctx context.Context, userID, codeID string, err error) {
	reason := "error"
	var redeemErr *RedeemError
	switch {
	case errors.As(err, &redeemErr):
		reason = string(redeemErr.Reason)
	case errors.Is(err, core.ErrConflict):
		reason = "CONFLICT"
	}

	metrics.IncCodeRedemption(reason)

	e := audit.NewEvent(audit.KindRedeemFailed, userID).With("reason", reason)
	if codeID != "" {
		e = e.With("code_id", codeID)
	}
	s.sink.Record(ctx, e)
}

func (s *Service) DeactivateAccessCode(ctx context.Context, codeID string) error {
	if err := s.repoFor(s.db).DeactivateCode(ctx, codeID); err != nil {
		return err
	}
	slog.Info("access code deactivated", "code_id", codeID)
	return nil
}

func (s *Service) ListAccessCodes(
	ctx context.Context,
	page core.PageParams,
) ([]AccessCode, int, error) {
	page.Normalize()
	return s.repoFor(s.db).ListCodes(ctx, page)
}
