// AngelaMos | 2026
// repository.go

package reveal

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type HintUsage struct {
	UserID     string    `db:"user_id"`
	QuestionID string    `db:"question_id"`
	HintIndex  int       `db:"hint_index"`
	Cost       int64     `db:"cost"`
	CreatedAt  time.Time `db:"created_at"`
}

type SolutionReveal struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	QuestionID string    `db:"question_id"`
	Cost       int64     `db:"cost"`
	CreatedAt  time.Time `db:"created_at"`
}

type Repository interface {
	// LockUser serialises reveals per user on the user_progress row.
	LockUser(ctx context.Context, userID string) error
	CountHintUsages(ctx context.Context, userID, questionID string) (int, error)
	InsertHintUsage(ctx context.Context, u *HintUsage) error
	CountSolutionReveals(ctx context.Context, userID, questionID string) (int, error)
	InsertSolutionReveal(ctx context.Context, sr *SolutionReveal) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) LockUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`SELECT 1 FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return fmt.Errorf("lock user progress: %w", err)
	}
	return nil
}

func (r *repository) CountHintUsages(
	ctx context.Context,
	userID, questionID string,
) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM hint_usages
		WHERE user_id = $1 AND question_id = $2`,
		userID, questionID)
	if err != nil {
		return 0, fmt.Errorf("count hint usages: %w", err)
	}
	return n, nil
}

func (r *repository) InsertHintUsage(ctx context.Context, u *HintUsage) error {
	err := r.db.GetContext(ctx, &u.CreatedAt, `
		INSERT INTO hint_usages (user_id, question_id, hint_index, cost)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.UserID, u.QuestionID, u.HintIndex, u.Cost)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("insert hint usage: %w", core.ErrDuplicateKey)
		}
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert hint usage: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert hint usage: %w", err)
	}
	return nil
}

func (r *repository) CountSolutionReveals(
	ctx context.Context,
	userID, questionID string,
) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM solution_reveals
		WHERE user_id = $1 AND question_id = $2`,
		userID, questionID)
	if err != nil {
		return 0, fmt.Errorf("count solution reveals: %w", err)
	}
	return n, nil
}

func (r *repository) InsertSolutionReveal(ctx context.Context, sr *SolutionReveal) error {
	err := r.db.GetContext(ctx, &sr.CreatedAt, `
		INSERT INTO solution_reveals (id, user_id, question_id, cost)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		sr.ID, sr.UserID, sr.QuestionID, sr.Cost)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert solution reveal: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert solution reveal: %w", err)
	}
	return nil
}
