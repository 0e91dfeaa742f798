// AngelaMos | 2026
// cache_test.go

package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/core"
)

type countingCatalog struct {
	calls     map[string]int
	questions map[string]*Question
}

func newCountingCatalog() *countingCatalog {
	return &countingCatalog{
		calls: map[string]int{},
		questions: map[string]*Question{
			"q1": {ID: "q1", TopicID: "t1", WeekNumber: 3, Title: "Loops", HintCount: 2},
		},
	}
}

func (c *countingCatalog) ListWeeks(context.Context) ([]Week, error) {
	c.calls["weeks"]++
	return []Week{{Number: 1}, {Number: 2}}, nil
}

func (c *countingCatalog) GetWeek(_ context.Context, n int) (*Week, error) {
	c.calls["week"]++
	if n > 2 {
		return nil, fmt.Errorf("get week: %w", core.ErrNotFound)
	}
	return &Week{Number: n}, nil
}

func (c *countingCatalog) GetTopic(_ context.Context, id string) (*Topic, error) {
	c.calls["topic"]++
	return &Topic{ID: id, WeekNumber: 2}, nil
}

func (c *countingCatalog) GetQuestion(_ context.Context, id string) (*Question, error) {
	c.calls["question"]++
	q, ok := c.questions[id]
	if !ok {
		return nil, fmt.Errorf("get question: %w", core.ErrNotFound)
	}
	return q, nil
}

func (c *countingCatalog) GetHint(_ context.Context, q string, i int) (*Hint, error) {
	c.calls["hint"]++
	return &Hint{QuestionID: q, Index: i, Body: "try a loop"}, nil
}

func (c *countingCatalog) ListTopics(_ context.Context, week int) ([]Topic, error) {
	c.calls["topics"]++
	return []Topic{{ID: "t1", WeekNumber: week, Title: "Arrays"}}, nil
}

func (c *countingCatalog) ListQuestions(_ context.Context, topicID string) ([]QuestionSummary, error) {
	c.calls["questions"]++
	return []QuestionSummary{{ID: "q1", TopicID: topicID, Title: "Loops", HintCount: 2}}, nil
}

func setupCache(t *testing.T, ttl time.Duration) (*CachedCatalog, *countingCatalog, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := newCountingCatalog()
	return NewCachedCatalog(backing, core.NewRedisFromClient(client, "cg:"), ttl), backing, mr
}

func TestCachedQuestionHitsRedisOnSecondRead(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	first, err := cache.GetQuestion(ctx, "q1")
	require.NoError(t, err)
	second, err := cache.GetQuestion(ctx, "q1")
	require.NoError(t, err)

	assert.Equal(t, 1, backing.calls["question"])
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("cg:content:question:q1"))
}

func TestCachedEntriesExpire(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.GetWeek(ctx, 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.GetWeek(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls["week"])
}

func TestCacheDoesNotStoreMisses(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.GetWeek(ctx, 9)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = cache.GetWeek(ctx, 9)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, 2, backing.calls["week"])
	assert.False(t, mr.Exists("cg:content:week:9"))
}

func TestZeroTTLBypassesRedis(t *testing.T) {
	cache, backing, mr := setupCache(t, 0)
	ctx := context.Background()

	_, err := cache.GetHint(ctx, "q1", 0)
	require.NoError(t, err)
	_, err = cache.GetHint(ctx, "q1", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, backing.calls["hint"])
	assert.Empty(t, mr.Keys())
}

func TestRedisDownFallsThrough(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	mr.Close()

	weeks, err := cache.ListWeeks(context.Background())
	require.NoError(t, err)
	assert.Len(t, weeks, 2)
	assert.Equal(t, 1, backing.calls["weeks"])
}

func TestPurgeRemovesContentKeys(t *testing.T) {
	cache, _, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	_, _ = cache.ListWeeks(ctx)
	_, _ = cache.GetTopic(ctx, "t1")
	_, _ = cache.GetHint(ctx, "q1", 1)
	require.NoError(t, mr.Set("cg:ratelimit:ip:1", "x"))

	removed, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{"cg:ratelimit:ip:1"}, mr.Keys())
}

func TestCorruptEntryIsReloaded(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	require.NoError(t, mr.Set("cg:content:topic:t1", "{not json"))

	_, err := cache.GetTopic(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls["topic"])

	raw, err := mr.Get("cg:content:topic:t1")
	require.NoError(t, err)
	assert.NotEqual(t, "{not json", raw)
}

func TestCachedListingsArePurged(t *testing.T) {
	cache, backing, mr := setupCache(t, time.Minute)
	ctx := context.Background()

	for range 2 {
		topics, err := cache.ListTopics(ctx, 3)
		require.NoError(t, err)
		require.Len(t, topics, 1)

		questions, err := cache.ListQuestions(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, questions, 1)
	}
	assert.Equal(t, 1, backing.calls["topics"])
	assert.Equal(t, 1, backing.calls["questions"])
	assert.True(t, mr.Exists("cg:content:week:3:topics"))

	_, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.False(t, mr.Exists("cg:content:topic:t1:questions"))
}
