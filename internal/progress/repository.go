// AngelaMos | 2026
// repository.go

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type AttemptStatus string

const (
	AttemptPass AttemptStatus = "PASS"
	AttemptFail AttemptStatus = "FAIL"
)

type Progress struct {
	UserID         string     `db:"user_id"`
	XP             int64      `db:"xp"`
	Streak         int        `db:"streak"`
	BestStreak     int        `db:"best_streak"`
	TotalSolved    int        `db:"total_solved"`
	LastActiveDate *time.Time `db:"last_active_date"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

type Attempt struct {
	ID         string        `db:"id"`
	UserID     string        `db:"user_id"`
	QuestionID string        `db:"question_id"`
	Status     AttemptStatus `db:"status"`
	CreatedAt  time.Time     `db:"created_at"`
}

type Repository interface {
	Get(ctx context.Context, userID string) (*Progress, error)
	// Lock creates the row when missing and holds it FOR UPDATE.
	Lock(ctx context.Context, userID string) (*Progress, error)
	InsertAttempt(ctx context.Context, a *Attempt) error
	MarkSolved(ctx context.Context, userID, questionID string) (bool, error)
	SaveCounters(ctx context.Context, p *Progress) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const progressColumns = `
	user_id, xp, streak, best_streak, total_solved, last_active_date, updated_at`

func (r *repository) Get(ctx context.Context, userID string) (*Progress, error) {
	var p Progress
	err := r.db.GetContext(ctx, &p,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

func (r *repository) Lock(ctx context.Context, userID string) (*Progress, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("lock progress: user: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("lock progress: %w", err)
	}

	var p Progress
	err = r.db.GetContext(ctx, &p,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 FOR UPDATE`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("lock progress: %w", err)
	}
	return &p, nil
}

func (r *repository) InsertAttempt(ctx context.Context, a *Attempt) error {
	err := r.db.GetContext(ctx, &a.CreatedAt, `
		INSERT INTO question_attempts (id, user_id, question_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.UserID, a.QuestionID, a.Status)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert attempt: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// MarkSolved reports whether this call recorded the first PASS.
func (r *repository) MarkSolved(ctx context.Context, userID, questionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO solved_questions (user_id, question_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, question_id) DO NOTHING`,
		userID, questionID)
	if err != nil {
		return false, fmt.Errorf("mark solved: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark solved: %w", err)
	}
	return rows == 1, nil
}

// SaveCounters writes streak and solve counters. xp is owned by the ledger
// and is left alone.
func (r *repository) SaveCounters(ctx context.Context, p *Progress) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_progress
		SET streak = $2,
		    best_streak = $3,
		    total_solved = $4,
		    last_active_date = $5,
		    updated_at = NOW()
		WHERE user_id = $1`,
		p.UserID, p.Streak, p.BestStreak, p.TotalSolved, p.LastActiveDate)
	if err != nil {
		return fmt.Errorf("save progress counters: %w", err)
	}
	return nil
}
