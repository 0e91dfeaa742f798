// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/metrics"
)

// RepositoryFactory binds a Repository to a pool or an open transaction.
type RepositoryFactory func(db core.DBTX) Repository

type Service struct {
	db      core.DBTX
	tx      core.TxRunner
	repoFor RepositoryFactory
}

func NewService(
	db core.DBTX,
	tx core.TxRunner,
	repoFor RepositoryFactory,
) *Service {
	if repoFor == nil {
		repoFor = NewRepository
	}
	return &Service{db: db, tx: tx, repoFor: repoFor}
}

type EarnInput struct {
	UserID      string
	Amount      int64
	Type        EntryType
	Description string
	Metadata    map[string]any
}

type SpendInput struct {
	UserID      string
	Cost        int64
	Type        EntryType
	Description string
	Metadata    map[string]any
}

type EarnResult struct {
	Entry           *Entry
	Balance         int64
	PreviousBalance int64
}

type SpendResult struct {
	Entry   *Entry
	Balance int64
}

func (in EarnInput) validate() error {
	if in.UserID == "" {
		return fmt.Errorf("earn: missing user id: %w", core.ErrInvalidInput)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("earn: amount must be positive: %w", core.ErrInvalidInput)
	}
	if !in.Type.IsCredit() {
		return fmt.Errorf(
			"earn: %q is not a credit type: %w",
			in.Type,
			core.ErrInvalidInput,
		)
	}
	return nil
}

func (in SpendInput) validate() error {
	if in.UserID == "" {
		return fmt.Errorf("spend: missing user id: %w", core.ErrInvalidInput)
	}
	if in.Cost <= 0 {
		return fmt.Errorf("spend: cost must be positive: %w", core.ErrInvalidInput)
	}
	if !in.Type.IsDebit() {
		return fmt.Errorf(
			"spend: %q is not a debit type: %w",
			in.Type,
			core.ErrInvalidInput,
		)
	}
	return nil
}

func (s *Service) Earn(ctx context.Context, in EarnInput) (*EarnResult, error) {
	ctx, span := core.StartSpan(ctx, "ledger.Earn",
		attribute.String("user.id", in.UserID),
		attribute.String("ledger.type", string(in.Type)),
		attribute.Int64("ledger.amount", in.Amount),
	)
	defer span.End()

	var result *EarnResult
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		var txErr error
		result, txErr = s.EarnTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return result, nil
}

// EarnTx credits inside the caller's transaction.
func (s *Service) EarnTx(
	ctx context.Context,
	tx core.DBTX,
	in EarnInput,
) (*EarnResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := s.repoFor(tx)

	balance, err := repo.Credit(ctx, in.UserID, in.Amount)
	if err != nil {
		return nil, err
	}

	entry, err := newEntry(in.UserID, in.Amount, in.Type, in.Description, in.Metadata, balance)
	if err != nil {
		return nil, err
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	metrics.IncLedgerEntry(string(in.Type), in.Amount)

	return &EarnResult{
		Entry:           entry,
		Balance:         balance,
		PreviousBalance: balance - in.Amount,
	}, nil
}

func (s *Service) Spend(ctx context.Context, in SpendInput) (*SpendResult, error) {
	ctx, span := core.StartSpan(ctx, "ledger.Spend",
		attribute.String("user.id", in.UserID),
		attribute.String("ledger.type", string(in.Type)),
		attribute.Int64("ledger.cost", in.Cost),
	)
	defer span.End()

	var result *SpendResult
	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		var txErr error
		result, txErr = s.SpendTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return result, nil
}

// SpendTx debits inside the caller's transaction. An
// *core.InsufficientFundsError leaves the balance untouched.
func (s *Service) SpendTx(
	ctx context.Context,
	tx core.DBTX,
	in SpendInput,
) (*SpendResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := s.repoFor(tx)

	balance, ok, err := repo.Debit(ctx, in.UserID, in.Cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		available, balErr := repo.Balance(ctx, in.UserID)
		if balErr != nil {
			return nil, balErr
		}
		metrics.IncSpendRejected(string(in.Type))
		return nil, &core.InsufficientFundsError{
			Required:  in.Cost,
			Available: available,
		}
	}

	entry, err := newEntry(in.UserID, -in.Cost, in.Type, in.Description, in.Metadata, balance)
	if err != nil {
		return nil, err
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	metrics.IncLedgerEntry(string(in.Type), in.Cost)

	return &SpendResult{Entry: entry, Balance: balance}, nil
}

func newEntry(
	userID string,
	amount int64,
	entryType EntryType,
	description string,
	metadata map[string]any,
	balance int64,
) (*Entry, error) {
	meta := types.JSONText("{}")
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode ledger metadata: %w", err)
		}
		meta = types.JSONText(raw)
	}

	return &Entry{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Amount:       amount,
		Type:         entryType,
		Description:  description,
		Metadata:     meta,
		BalanceAfter: balance,
	}, nil
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.repoFor(s.db).Balance(ctx, userID)
}

func (s *Service) History(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Entry, int, error) {
	page.Normalize()
	return s.repoFor(s.db).List(ctx, userID, page)
}

type Consistency struct {
	UserID     string
	XP         int64
	LedgerSum  int64
	Consistent bool
}

// VerifyConsistency compares the materialised balance with the ledger sum.
func (s *Service) VerifyConsistency(
	ctx context.Context,
	userID string,
) (*Consistency, error) {
	repo := s.repoFor(s.db)

	xp, err := repo.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := repo.Sum(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Consistency{
		UserID:     userID,
		XP:         xp,
		LedgerSum:  sum,
		Consistent: xp == sum,
	}, nil
}

type EconomyStats struct {
	Totals   []TypeTotal
	Credited int64
	Debited  int64
	Drifts   []Drift
}

const maxReportedDrifts = 50

func (s *Service) EconomyStats(ctx context.Context) (*EconomyStats, error) {
	repo := s.repoFor(s.db)

	totals, err := repo.TotalsByType(ctx)
	if err != nil {
		return nil, err
	}

	drifts, err := repo.Drifts(ctx, maxReportedDrifts)
	if err != nil {
		return nil, err
	}

	stats := &EconomyStats{Totals: totals, Drifts: drifts}
	for _, t := range totals {
		if t.Amount > 0 {
			stats.Credited += t.Amount
		} else {
			stats.Debited -= t.Amount
		}
	}

	return stats, nil
}
