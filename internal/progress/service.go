// AngelaMos | 2026
// service.go

package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/coursegate/internal/access"
	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/ledger"
	"github.com/carterperez-dev/coursegate/internal/principal"
	"github.com/carterperez-dev/coursegate/internal/rank"
)

type Gate interface {
	RequireQuestion(
		ctx context.Context,
		p principal.Principal,
		questionID string,
	) (*content.Question, *access.Decision, error)
}

type Earner interface {
	EarnTx(ctx context.Context, tx core.DBTX, in ledger.EarnInput) (*ledger.EarnResult, error)
}

type RepositoryFactory func(db core.DBTX) Repository

type Service struct {
	db      core.DBTX
	tx      core.TxRunner
	repoFor RepositoryFactory
	gate    Gate
	ledger  Earner
	tiers   entitlement.Tiers
	curve   Curve
	economy config.EconomyConfig
	loc     *time.Location
	now     func() time.Time
}

type Deps struct {
	DB       core.DBTX
	Tx       core.TxRunner
	RepoFor  RepositoryFactory
	Gate     Gate
	Ledger   Earner
	Tiers    entitlement.Tiers
	Economy  config.EconomyConfig
	Progress config.ProgressConfig
}

func NewService(d Deps) (*Service, error) {
	curve, err := NewCurve(d.Progress.LevelThresholds)
	if err != nil {
		return nil, err
	}
	if d.RepoFor == nil {
		d.RepoFor = NewRepository
	}
	return &Service{
		db:      d.DB,
		tx:      d.Tx,
		repoFor: d.RepoFor,
		gate:    d.Gate,
		ledger:  d.Ledger,
		tiers:   d.Tiers,
		curve:   curve,
		economy: d.Economy,
		loc:     d.Progress.Location(),
		now:     time.Now,
	}, nil
}

type Snapshot struct {
	UserID         string
	XP             int64
	Level          int
	XPProgress     int64
	XPToNextLevel  int64
	CurrentStreak  int
	BestStreak     int
	StreakStatus   StreakStatus
	TotalSolved    int
	Rank           rank.Rank
	LastActiveDate *time.Time
}

func (s *Service) GetUserProgress(ctx context.Context, userID string) (*Snapshot, error) {
	p, err := s.repoFor(s.db).Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		p = &Progress{UserID: userID}
	}
	return s.snapshot(p), nil
}

func (s *Service) snapshot(p *Progress) *Snapshot {
	lvl := s.curve.At(p.XP)
	streak := Streak{Current: p.Streak, Best: p.BestStreak, LastActive: p.LastActiveDate}
	current, status := streak.View(Day(s.now(), s.loc))

	return &Snapshot{
		UserID:         p.UserID,
		XP:             p.XP,
		Level:          lvl.Level,
		XPProgress:     lvl.XPProgress,
		XPToNextLevel:  lvl.XPToNextLevel,
		CurrentStreak:  current,
		BestStreak:     p.BestStreak,
		StreakStatus:   status,
		TotalSolved:    p.TotalSolved,
		Rank:           rank.Calculate(p.XP),
		LastActiveDate: p.LastActiveDate,
	}
}

type AttemptResult struct {
	Attempt    *Attempt
	FirstPass  bool
	XPAwarded  int64
	Balance    int64
	RankChange rank.Change
	Progress   *Snapshot
}

// RecordAttempt stores the attempt and touches the streak. The first PASS
// on a question also earns the pass reward. Everything commits together.
func (s *Service) RecordAttempt(
	ctx context.Context,
	p principal.Principal,
	questionID string,
	status AttemptStatus,
) (*AttemptResult, error) {
	if status != AttemptPass && status != AttemptFail {
		return nil, fmt.Errorf("record attempt: status %q: %w", status, core.ErrInvalidInput)
	}

	ctx, span := core.StartSpan(ctx, "progress.RecordAttempt",
		attribute.String("user.id", p.UserID),
		attribute.String("question.id", questionID),
		attribute.String("attempt.status", string(status)),
	)
	defer span.End()

	_, decision, err := s.gate.RequireQuestion(ctx, p, questionID)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	var result AttemptResult
	err = s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.repoFor(tx)

		prog, err := repo.Lock(ctx, p.UserID)
		if err != nil {
			return err
		}
		previousXP := prog.XP

		attempt := &Attempt{
			ID:         uuid.New().String(),
			UserID:     p.UserID,
			QuestionID: questionID,
			Status:     status,
		}
		if err := repo.InsertAttempt(ctx, attempt); err != nil {
			return err
		}
		result.Attempt = attempt

		streak := Streak{
			Current:    prog.Streak,
			Best:       prog.BestStreak,
			LastActive: prog.LastActiveDate,
		}.Touch(Day(s.now(), s.loc))
		prog.Streak = streak.Current
		prog.BestStreak = streak.Best
		prog.LastActiveDate = streak.LastActive

		if status == AttemptPass {
			first, err := repo.MarkSolved(ctx, p.UserID, questionID)
			if err != nil {
				return err
			}
			if first {
				prog.TotalSolved++
				result.FirstPass = true
			}
			if reward := s.reward(decision.Plan); first && reward > 0 {
				earned, err := s.ledger.EarnTx(ctx, tx, ledger.EarnInput{
					UserID:      p.UserID,
					Amount:      reward,
					Type:        ledger.EntryEarnPass,
					Description: "first pass",
					Metadata:    map[string]any{"question_id": questionID},
				})
				if err != nil {
					return err
				}
				prog.XP = earned.Balance
				result.XPAwarded = earned.Entry.Amount
			}
		}

		if err := repo.SaveCounters(ctx, prog); err != nil {
			return err
		}

		result.Balance = prog.XP
		result.RankChange = rank.CheckRankChange(previousXP, prog.XP)
		result.Progress = s.snapshot(prog)
		return nil
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return &result, nil
}

func (s *Service) reward(plan entitlement.Plan) int64 {
	reward := s.economy.PassReward
	if s.tiers.For(plan).Features.XPBoost {
		reward += reward * s.economy.XPBoostPercent / 100
	}
	return reward
}
