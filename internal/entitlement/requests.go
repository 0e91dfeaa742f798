// AngelaMos | 2026
// requests.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

func (s *Service) SubmitAccessRequest(
	ctx context.Context,
	p principal.Principal,
	plan Plan,
	message string,
) (*AccessRequest, error) {
	if !plan.IsPaid() {
		return nil, fmt.Errorf("submit access request: plan %q: %w", plan, core.ErrInvalidInput)
	}

	res, err := s.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if res.IsAdmin || (res.HasAccess && res.EffectivePlan.IsPaid()) {
		return nil, fmt.Errorf(
			"submit access request: already on %s: %w",
			res.EffectivePlan,
			core.ErrConflict,
		)
	}

	req := &AccessRequest{
		ID:            uuid.New().String(),
		UserID:        p.UserID,
		RequestedPlan: plan,
		Message:       strings.TrimSpace(message),
	}

	if err := s.repoFor(s.db).CreateRequest(ctx, req); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, fmt.Errorf(
				"submit access request: a request is already pending: %w",
				core.ErrConflict,
			)
		}
		return nil, err
	}

	slog.Info("access request submitted",
		"request_id", req.ID,
		"user_id", req.UserID,
		"plan", req.RequestedPlan,
	)

	return req, nil
}

func (s *Service) ListAccessRequests(
	ctx context.Context,
	status RequestStatus,
	page core.PageParams,
) ([]AccessRequest, int, error) {
	if status == "" {
		status = RequestPending
	}
	page.Normalize()
	return s.repoFor(s.db).ListRequests(ctx, status, page)
}

func (s *Service) MyAccessRequests(ctx context.Context, userID string) ([]AccessRequest, error) {
	return s.repoFor(s.db).ListUserRequests(ctx, userID)
}

type ReviewInput struct {
	RequestID string
	Reviewer  string
	Note      string
	ExpiresAt *time.Time
}

type ApproveResult struct {
	Request     *AccessRequest
	Entitlement *Entitlement
}

func (s *Service) ApproveAccessRequest(ctx context.Context, in ReviewInput) (*ApproveResult, error) {
	var result ApproveResult
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		req, err := s.reviewTx(ctx, tx, in, RequestApproved)
		if err != nil {
			return err
		}

		ent, err := s.GrantTx(ctx, tx, GrantInput{
			UserID:    req.UserID,
			Plan:      req.RequestedPlan,
			GrantedBy: in.Reviewer,
			Reason:    "access request " + req.ID,
			ExpiresAt: in.ExpiresAt,
		})
		if err != nil {
			return err
		}

		result = ApproveResult{Request: req, Entitlement: ent}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordChange(ctx, "approve", in.Reviewer, result.Entitlement, in.Note)
	return &result, nil
}

func (s *Service) RejectAccessRequest(ctx context.Context, in ReviewInput) (*AccessRequest, error) {
	var req *AccessRequest
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		var txErr error
		req, txErr = s.reviewTx(ctx, tx, in, RequestRejected)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	slog.Info("access request rejected",
		"request_id", req.ID,
		"user_id", req.UserID,
		"reviewer", in.Reviewer,
	)
	return req, nil
}

// reviewTx moves a locked PENDING request to status. Finalised requests are
// a Conflict.
func (s *Service) reviewTx(
	ctx context.Context,
	tx core.DBTX,
	in ReviewInput,
	status RequestStatus,
) (*AccessRequest, error) {
	repo := s.repoFor(tx)

	req, err := repo.GetRequestForUpdate(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, fmt.Errorf(
			"access request already %s: %w",
			strings.ToLower(string(req.Status)),
			core.ErrConflict,
		)
	}

	req.Status = status
	req.ReviewNote = strings.TrimSpace(in.Note)
	if in.Reviewer != "" {
		req.ReviewedBy = &in.Reviewer
	}

	if err := repo.ReviewRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}
