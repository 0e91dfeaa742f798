// AngelaMos | 2026
// service.go

// Package reveal sells hints and solutions for XP.
package reveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/coursegate/internal/access"
	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/ledger"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type Gate interface {
	RequireQuestion(
		ctx context.Context,
		p principal.Principal,
		questionID string,
	) (*content.Question, *access.Decision, error)
}

type Hints interface {
	GetHint(ctx context.Context, questionID string, index int) (*content.Hint, error)
}

type Spender interface {
	SpendTx(ctx context.Context, tx core.DBTX, in ledger.SpendInput) (*ledger.SpendResult, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

type RepositoryFactory func(db core.DBTX) Repository

type Deps struct {
	DB      core.DBTX
	Tx      core.TxRunner
	RepoFor RepositoryFactory
	Gate    Gate
	Hints   Hints
	Ledger  Spender
	Economy config.EconomyConfig
}

type Service struct {
	db      core.DBTX
	tx      core.TxRunner
	repoFor RepositoryFactory
	gate    Gate
	hints   Hints
	ledger  Spender
	economy config.EconomyConfig
}

func NewService(d Deps) *Service {
	if d.RepoFor == nil {
		d.RepoFor = NewRepository
	}
	return &Service{
		db:      d.DB,
		tx:      d.Tx,
		repoFor: d.RepoFor,
		gate:    d.Gate,
		hints:   d.Hints,
		ledger:  d.Ledger,
		economy: d.Economy,
	}
}

// HintCost is the price of the hint at index: base, 2*base, 3*base...
func (s *Service) HintCost(index int) int64 {
	return s.economy.HintBaseCost * int64(index+1)
}

type HintResult struct {
	Hint    *content.Hint
	Cost    int64
	Balance int64
}

// RevealHint charges for the next hint in order. Hints already paid for
// come back free and skipping ahead is a Conflict.
func (s *Service) RevealHint(
	ctx context.Context,
	p principal.Principal,
	questionID string,
	index int,
) (*HintResult, error) {
	ctx, span := core.StartSpan(ctx, "reveal.RevealHint",
		attribute.String("user.id", p.UserID),
		attribute.String("question.id", questionID),
		attribute.Int("hint.index", index),
	)
	defer span.End()

	if index < 0 {
		return nil, fmt.Errorf("hint index %d: %w", index, core.ErrNotFound)
	}
	if _, _, err := s.gate.RequireQuestion(ctx, p, questionID); err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}
	hint, err := s.hints.GetHint(ctx, questionID, index)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	result := HintResult{Hint: hint}
	err = s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.repoFor(tx)

		if err := repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		next, err := repo.CountHintUsages(ctx, p.UserID, questionID)
		if err != nil {
			return err
		}

		switch {
		case index < next:
			return nil
		case index > next:
			return fmt.Errorf("reveal hint %d first: %w", next, core.ErrConflict)
		}

		cost := s.HintCost(index)
		spent, err := s.ledger.SpendTx(ctx, tx, ledger.SpendInput{
			UserID:      p.UserID,
			Cost:        cost,
			Type:        ledger.EntryHintPenalty,
			Description: fmt.Sprintf("hint %d", index),
			Metadata: map[string]any{
				"question_id": questionID,
				"hint_index":  index,
			},
		})
		if err != nil {
			return err
		}

		err = repo.InsertHintUsage(ctx, &HintUsage{
			UserID:     p.UserID,
			QuestionID: questionID,
			HintIndex:  index,
			Cost:       cost,
		})
		if errors.Is(err, core.ErrDuplicateKey) {
			return fmt.Errorf("hint %d already revealed: %w", index, core.ErrConflict)
		}
		if err != nil {
			return err
		}

		result.Cost = cost
		result.Balance = spent.Balance
		return nil
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if result.Cost == 0 {
		if result.Balance, err = s.ledger.Balance(ctx, p.UserID); err != nil {
			return nil, err
		}
	}

	slog.Debug("hint revealed",
		"user_id", p.UserID,
		"question_id", questionID,
		"index", index,
		"cost", result.Cost,
	)
	return &result, nil
}

type SolutionResult struct {
	QuestionID string
	Solution   string
	Cost       int64
	Balance    int64
}

// RevealSolution charges the flat solution cost. With repeat charging off a
// solution the user already paid for is free.
func (s *Service) RevealSolution(
	ctx context.Context,
	p principal.Principal,
	questionID string,
) (*SolutionResult, error) {
	ctx, span := core.StartSpan(ctx, "reveal.RevealSolution",
		attribute.String("user.id", p.UserID),
		attribute.String("question.id", questionID),
	)
	defer span.End()

	q, _, err := s.gate.RequireQuestion(ctx, p, questionID)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	result := SolutionResult{QuestionID: q.ID, Solution: q.Solution}
	err = s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.repoFor(tx)

		if err := repo.LockUser(ctx, p.UserID); err != nil {
			return err
		}
		if !s.economy.SolutionRepeatCharge {
			prior, err := repo.CountSolutionReveals(ctx, p.UserID, questionID)
			if err != nil {
				return err
			}
			if prior > 0 {
				return nil
			}
		}

		cost := s.economy.SolutionCost
		spent, err := s.ledger.SpendTx(ctx, tx, ledger.SpendInput{
			UserID:      p.UserID,
			Cost:        cost,
			Type:        ledger.EntryRevealPenalty,
			Description: "solution",
			Metadata:    map[string]any{"question_id": questionID},
		})
		if err != nil {
			return err
		}

		if err := repo.InsertSolutionReveal(ctx, &SolutionReveal{
			ID:         uuid.New().String(),
			UserID:     p.UserID,
			QuestionID: questionID,
			Cost:       cost,
		}); err != nil {
			return err
		}

		result.Cost = cost
		result.Balance = spent.Balance
		return nil
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if result.Cost == 0 {
		if result.Balance, err = s.ledger.Balance(ctx, p.UserID); err != nil {
			return nil, err
		}
	}
	return &result, nil
}
