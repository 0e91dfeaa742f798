// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type Repository interface {
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	Debit(ctx context.Context, userID string, cost int64) (int64, bool, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Append(ctx context.Context, entry *Entry) error
	List(
		ctx context.Context,
		userID string,
		page core.PageParams,
	) ([]Entry, int, error)
	Sum(ctx context.Context, userID string) (int64, error)
	TotalsByType(ctx context.Context) ([]TypeTotal, error)
	Drifts(ctx context.Context, limit int) ([]Drift, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Credit creates the progress row on first earn.
func (r *repository) Credit(
	ctx context.Context,
	userID string,
	amount int64,
) (int64, error) {
	query := `
		INSERT INTO user_progress (user_id, xp)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET xp = user_progress.xp + EXCLUDED.xp, updated_at = NOW()
		RETURNING xp`

	var balance int64
	err := r.db.GetContext(ctx, &balance, query, userID, amount)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return 0, fmt.Errorf("credit xp: user: %w", core.ErrNotFound)
		}
		return 0, fmt.Errorf("credit xp: %w", err)
	}

	return balance, nil
}

// Debit is the only guard against overdraft: the row is updated only while
// xp covers cost, so concurrent spends serialise on the row lock and the
// loser sees zero rows.
func (r *repository) Debit(
	ctx context.Context,
	userID string,
	cost int64,
) (int64, bool, error) {
	query := `
		UPDATE user_progress
		SET xp = xp - $2, updated_at = NOW()
		WHERE user_id = $1 AND xp >= $2
		RETURNING xp`

	var balance int64
	err := r.db.GetContext(ctx, &balance, query, userID, cost)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("debit xp: %w", err)
	}

	return balance, true, nil
}

func (r *repository) Balance(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE((SELECT xp FROM user_progress WHERE user_id = $1), 0)`

	var balance int64
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *repository) Append(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO points_ledger
			(id, user_id, amount, type, description, metadata, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &entry.CreatedAt, query,
		entry.ID,
		entry.UserID,
		entry.Amount,
		entry.Type,
		entry.Description,
		entry.Metadata,
		entry.BalanceAfter,
	)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("append ledger entry: user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Entry, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM points_ledger WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	query := `
		SELECT id, user_id, amount, type, description, metadata,
		       balance_after, created_at
		FROM points_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, query,
		userID,
		page.PageSize,
		page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}

	return entries, total, nil
}

func (r *repository) Sum(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM points_ledger WHERE user_id = $1`

	var sum int64
	if err := r.db.GetContext(ctx, &sum, query, userID); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}

	return sum, nil
}

func (r *repository) TotalsByType(ctx context.Context) ([]TypeTotal, error) {
	query := `
		SELECT type, COUNT(*) AS entries, COALESCE(SUM(amount), 0) AS amount
		FROM points_ledger
		GROUP BY type
		ORDER BY type`

	var totals []TypeTotal
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}

	return totals, nil
}

func (r *repository) Drifts(ctx context.Context, limit int) ([]Drift, error) {
	query := `
		SELECT p.user_id, p.xp, COALESCE(l.total, 0) AS ledger_sum
		FROM user_progress p
		LEFT JOIN (
			SELECT user_id, SUM(amount) AS total
			FROM points_ledger
			GROUP BY user_id
		) l ON l.user_id = p.user_id
		WHERE p.xp <> COALESCE(l.total, 0)
		ORDER BY p.user_id
		LIMIT $1`

	var drifts []Drift
	if err := r.db.SelectContext(ctx, &drifts, query, limit); err != nil {
		return nil, fmt.Errorf("ledger drifts: %w", err)
	}

	return drifts, nil
}
