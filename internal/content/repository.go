// AngelaMos | 2026
// repository.go

package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/coursegate/internal/core"
)

// Catalog is the read side used by gating and reveals.
type Catalog interface {
	ListWeeks(ctx context.Context) ([]Week, error)
	GetWeek(ctx context.Context, number int) (*Week, error)
	GetTopic(ctx context.Context, id string) (*Topic, error)
	GetQuestion(ctx context.Context, id string) (*Question, error)
	GetHint(ctx context.Context, questionID string, index int) (*Hint, error)
}

// Outline lists what a week or topic contains, in display order.
type Outline interface {
	ListTopics(ctx context.Context, week int) ([]Topic, error)
	ListQuestions(ctx context.Context, topicID string) ([]QuestionSummary, error)
}

// Source is everything the cache decorates.
type Source interface {
	Catalog
	Outline
}

type Repository interface {
	Source
	UpsertWeek(ctx context.Context, w *Week) error
	UpsertTopic(ctx context.Context, t *Topic) error
	UpsertQuestion(ctx context.Context, q *Question) error
	UpsertHint(ctx context.Context, h *Hint) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) ListWeeks(ctx context.Context) ([]Week, error) {
	var weeks []Week
	err := r.db.SelectContext(ctx, &weeks,
		`SELECT number, title FROM weeks ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	return weeks, nil
}

func (r *repository) GetWeek(ctx context.Context, number int) (*Week, error) {
	var w Week
	err := r.db.GetContext(ctx, &w,
		`SELECT number, title FROM weeks WHERE number = $1`, number)
	if err != nil {
		return nil, notFound("get week", err)
	}
	return &w, nil
}

func (r *repository) GetTopic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	err := r.db.GetContext(ctx, &t, `
		SELECT id, week_number, title, position
		FROM topics WHERE id = $1`, id)
	if err != nil {
		return nil, notFound("get topic", err)
	}
	return &t, nil
}

func (r *repository) GetQuestion(ctx context.Context, id string) (*Question, error) {
	query := `
		SELECT q.id, q.topic_id, t.week_number, q.title, q.solution, q.position,
		       (SELECT COUNT(*) FROM question_hints h WHERE h.question_id = q.id)
		           AS hint_count
		FROM questions q
		JOIN topics t ON t.id = q.topic_id
		WHERE q.id = $1`

	var q Question
	if err := r.db.GetContext(ctx, &q, query, id); err != nil {
		return nil, notFound("get question", err)
	}
	return &q, nil
}

func (r *repository) ListTopics(ctx context.Context, week int) ([]Topic, error) {
	topics := []Topic{}
	err := r.db.SelectContext(ctx, &topics, `
		SELECT id, week_number, title, position
		FROM topics WHERE week_number = $1
		ORDER BY position, id`, week)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func (r *repository) ListQuestions(ctx context.Context, topicID string) ([]QuestionSummary, error) {
	questions := []QuestionSummary{}
	err := r.db.SelectContext(ctx, &questions, `
		SELECT q.id, q.topic_id, q.title, q.position,
		       (SELECT COUNT(*) FROM question_hints h WHERE h.question_id = q.id)
		           AS hint_count
		FROM questions q
		WHERE q.topic_id = $1
		ORDER BY q.position, q.id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

func (r *repository) GetHint(
	ctx context.Context,
	questionID string,
	index int,
) (*Hint, error) {
	var h Hint
	err := r.db.GetContext(ctx, &h, `
		SELECT question_id, hint_index, body
		FROM question_hints
		WHERE question_id = $1 AND hint_index = $2`, questionID, index)
	if err != nil {
		return nil, notFound("get hint", err)
	}
	return &h, nil
}

func (r *repository) UpsertWeek(ctx context.Context, w *Week) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weeks (number, title) VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET title = EXCLUDED.title`,
		w.Number, w.Title)
	if err != nil {
		return fmt.Errorf("upsert week: %w", err)
	}
	return nil
}

func (r *repository) UpsertTopic(ctx context.Context, t *Topic) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO topics (id, week_number, title, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET week_number = EXCLUDED.week_number,
		    title = EXCLUDED.title,
		    position = EXCLUDED.position`,
		t.ID, t.WeekNumber, t.Title, t.Position)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("upsert topic: week: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert topic: %w", err)
	}
	return nil
}

func (r *repository) UpsertQuestion(ctx context.Context, q *Question) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO questions (id, topic_id, title, solution, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET topic_id = EXCLUDED.topic_id,
		    title = EXCLUDED.title,
		    solution = EXCLUDED.solution,
		    position = EXCLUDED.position`,
		q.ID, q.TopicID, q.Title, q.Solution, q.Position)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("upsert question: topic: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert question: %w", err)
	}
	return nil
}

func (r *repository) UpsertHint(ctx context.Context, h *Hint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_hints (question_id, hint_index, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (question_id, hint_index) DO UPDATE SET body = EXCLUDED.body`,
		h.QuestionID, h.Index, h.Body)
	if err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("upsert hint: question: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert hint: %w", err)
	}
	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
