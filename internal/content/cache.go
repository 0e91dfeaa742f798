// AngelaMos | 2026
// cache.go

package content

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/metrics"
)

// CachedCatalog serves catalog reads from Redis so every instance shares
// one copy. Redis failures fall through to the underlying catalog. A zero
// TTL disables caching.
type CachedCatalog struct {
	next Source
	rdb  *core.Redis
	ttl  time.Duration
}

func NewCachedCatalog(next Source, rdb *core.Redis, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedCatalog) ListWeeks(ctx context.Context) ([]Week, error) {
	weeks, err := cached(ctx, c, "weeks", c.rdb.Key("content", "weeks"),
		func() (*[]Week, error) {
			w, err := c.next.ListWeeks(ctx)
			return &w, err
		})
	if err != nil {
		return nil, err
	}
	return *weeks, nil
}

func (c *CachedCatalog) GetWeek(ctx context.Context, number int) (*Week, error) {
	return cached(ctx, c, "week", c.rdb.Key("content", "week", strconv.Itoa(number)),
		func() (*Week, error) { return c.next.GetWeek(ctx, number) })
}

func (c *CachedCatalog) GetTopic(ctx context.Context, id string) (*Topic, error) {
	return cached(ctx, c, "topic", c.rdb.Key("content", "topic", id),
		func() (*Topic, error) { return c.next.GetTopic(ctx, id) })
}

func (c *CachedCatalog) GetQuestion(ctx context.Context, id string) (*Question, error) {
	return cached(ctx, c, "question", c.rdb.Key("content", "question", id),
		func() (*Question, error) { return c.next.GetQuestion(ctx, id) })
}

func (c *CachedCatalog) GetHint(
	ctx context.Context,
	questionID string,
	index int,
) (*Hint, error) {
	key := c.rdb.Key("content", "hint", questionID, strconv.Itoa(index))
	return cached(ctx, c, "hint", key,
		func() (*Hint, error) { return c.next.GetHint(ctx, questionID, index) })
}

func (c *CachedCatalog) ListTopics(ctx context.Context, week int) ([]Topic, error) {
	topics, err := cached(ctx, c, "topics", c.rdb.Key("content", "week", strconv.Itoa(week), "topics"),
		func() (*[]Topic, error) {
			t, err := c.next.ListTopics(ctx, week)
			return &t, err
		})
	if err != nil {
		return nil, err
	}
	return *topics, nil
}

func (c *CachedCatalog) ListQuestions(ctx context.Context, topicID string) ([]QuestionSummary, error) {
	questions, err := cached(ctx, c, "questions", c.rdb.Key("content", "topic", topicID, "questions"),
		func() (*[]QuestionSummary, error) {
			q, err := c.next.ListQuestions(ctx, topicID)
			return &q, err
		})
	if err != nil {
		return nil, err
	}
	return *questions, nil
}

// Purge drops every cached catalog entry. Called after content is reseeded.
func (c *CachedCatalog) Purge(ctx context.Context) (int, error) {
	return c.rdb.DeleteMatching(ctx, c.rdb.Key("content", "*"))
}

// cached reads key or loads and stores it. Misses from load are not cached,
// so newly seeded content shows up without waiting for a TTL.
func cached[T any](
	ctx context.Context,
	c *CachedCatalog,
	kind, key string,
	load func() (*T, error),
) (*T, error) {
	if c.ttl <= 0 {
		return load()
	}

	var v T
	hit, err := c.rdb.GetJSON(ctx, key, &v)
	if err != nil {
		slog.Warn("content cache read failed", "key", key, "error", err)
	}
	metrics.IncContentCache(kind, hit)
	if hit {
		return &v, nil
	}

	loaded, err := load()
	if err != nil {
		return nil, err
	}

	if err := c.rdb.SetJSON(ctx, key, loaded, c.ttl); err != nil {
		slog.Warn("content cache write failed", "key", key, "error", err)
	}

	return loaded, nil
}

var _ Source = (*CachedCatalog)(nil)
