// AngelaMos | 2026
// gate_test.go

package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/content"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/entitlement"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

var tiers = entitlement.NewTiers(config.PlansConfig{FreeMaxWeek: 1, BasicMaxWeek: 5})

type planResolver struct {
	plans map[string]entitlement.Plan
}

func (r *planResolver) Resolve(_ context.Context, p principal.Principal) (*entitlement.Resolution, error) {
	if p.IsAdmin() {
		return &entitlement.Resolution{
			UserID:        p.UserID,
			Plan:          entitlement.PlanAdmin,
			EffectivePlan: entitlement.PlanAdmin,
			IsAdmin:       true,
			HasAccess:     true,
			Tier:          tiers.For(entitlement.PlanAdmin),
		}, nil
	}
	plan, ok := r.plans[p.UserID]
	if !ok {
		plan = entitlement.PlanFree
	}
	return &entitlement.Resolution{
		UserID:        p.UserID,
		Plan:          plan,
		EffectivePlan: plan,
		HasAccess:     true,
		Tier:          tiers.For(plan),
	}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListWeeks(context.Context) ([]content.Week, error) {
	out := make([]content.Week, 0, 8)
	for i := 1; i <= 8; i++ {
		out = append(out, content.Week{Number: i})
	}
	return out, nil
}

func (fakeCatalog) GetWeek(_ context.Context, n int) (*content.Week, error) {
	if n > 8 {
		return nil, fmt.Errorf("get week: %w", core.ErrNotFound)
	}
	return &content.Week{Number: n}, nil
}

func (fakeCatalog) GetTopic(_ context.Context, id string) (*content.Topic, error) {
	switch id {
	case "t1":
		return &content.Topic{ID: id, WeekNumber: 1}, nil
	case "t3":
		return &content.Topic{ID: id, WeekNumber: 3}, nil
	}
	return nil, fmt.Errorf("get topic: %w", core.ErrNotFound)
}

func (fakeCatalog) GetQuestion(_ context.Context, id string) (*content.Question, error) {
	if id == "q7" {
		return &content.Question{ID: id, TopicID: "t7", WeekNumber: 7}, nil
	}
	return nil, fmt.Errorf("get question: %w", core.ErrNotFound)
}

func (fakeCatalog) GetHint(context.Context, string, int) (*content.Hint, error) {
	return nil, core.ErrNotFound
}

func (fakeCatalog) ListTopics(_ context.Context, week int) ([]content.Topic, error) {
	return []content.Topic{{ID: fmt.Sprintf("t%d", week), WeekNumber: week}}, nil
}

func (fakeCatalog) ListQuestions(_ context.Context, topicID string) ([]content.QuestionSummary, error) {
	return []content.QuestionSummary{{ID: "q-" + topicID, TopicID: topicID, HintCount: 3}}, nil
}

func newGate() (*Gate, *planResolver) {
	res := &planResolver{plans: map[string]entitlement.Plan{}}
	return NewGate(res, fakeCatalog{}, tiers), res
}

func user(id string) principal.Principal { return principal.New(id, principal.RoleUser) }

func TestFreeWeekThreeLockedThenUnlockedByBasic(t *testing.T) {
	gate, res := newGate()
	ctx := context.Background()

	d, err := gate.CanAccessWeek(ctx, user("u1"), 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "upgrade to unlock week 3", d.Reason)
	assert.Equal(t, entitlement.PlanBasic, d.RequiredPlan)

	res.plans["u1"] = entitlement.PlanBasic

	d, err = gate.CanAccessWeek(ctx, user("u1"), 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestAdminAlwaysAllowed(t *testing.T) {
	gate, _ := newGate()
	root := principal.New("root", principal.RoleAdmin)

	for week := 1; week <= 8; week++ {
		d, err := gate.CanAccessWeek(context.Background(), root, week)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "week %d", week)
	}
}

func TestUnknownWeekIsNotFound(t *testing.T) {
	gate, _ := newGate()

	for _, week := range []int{0, -1, 9} {
		_, err := gate.CanAccessWeek(context.Background(), user("u1"), week)
		assert.ErrorIs(t, err, core.ErrNotFound, "week %d", week)
		assert.NotErrorIs(t, err, core.ErrLocked)
	}
}

func TestTopicAndQuestionDelegateToWeek(t *testing.T) {
	gate, _ := newGate()
	ctx := context.Background()

	d, err := gate.CanAccessTopic(ctx, user("u1"), "t1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CanAccessTopic(ctx, user("u1"), "t3")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.WeekNumber)

	d, err = gate.CanAccessQuestion(ctx, user("u1"), "q7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.PlanPro, d.RequiredPlan)

	_, err = gate.CanAccessTopic(ctx, user("u1"), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRequireReturnsLockedError(t *testing.T) {
	gate, _ := newGate()

	_, _, err := gate.RequireQuestion(context.Background(), user("u1"), "q7")
	require.Error(t, err)

	var locked *core.LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, ResourceQuestion, locked.Resource)
	assert.Equal(t, "q7", locked.ResourceID)
	assert.Equal(t, 7, locked.WeekNumber)
	assert.Equal(t, "PRO", locked.RequiredPlan)

	_, _, err = gate.RequireQuestion(context.Background(), user("u1"), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAccessMonotonicInTier(t *testing.T) {
	gate, res := newGate()
	plans := []entitlement.Plan{entitlement.PlanFree, entitlement.PlanBasic, entitlement.PlanPro}

	for week := 1; week <= 8; week++ {
		allowedBefore := false
		for _, plan := range plans {
			res.plans["u1"] = plan
			d, err := gate.CanAccessWeek(context.Background(), user("u1"), week)
			require.NoError(t, err)
			if allowedBefore {
				assert.True(t, d.Allowed, "week %d lost on %s", week, plan)
			}
			allowedBefore = d.Allowed
		}
	}
}

func TestListWeeks(t *testing.T) {
	gate, res := newGate()
	res.plans["u1"] = entitlement.PlanBasic

	weeks, err := gate.ListWeeks(context.Background(), user("u1"))
	require.NoError(t, err)
	require.Len(t, weeks, 8)
	assert.True(t, weeks[4].Decision.Allowed)
	assert.False(t, weeks[5].Decision.Allowed)
}

func newRouter(gate *Gate) chi.Router {
	r := chi.NewRouter()
	NewHandler(gate, fakeCatalog{}).RegisterRoutes(r, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(principal.WithContext(req.Context(), user("u1"))))
		})
	})
	return r
}

func TestHandlerDeniedWeekIsData(t *testing.T) {
	gate, _ := newGate()
	r := newRouter(gate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/weeks/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)
	assert.Contains(t, rec.Body.String(), `"required_plan":"BASIC"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/weeks/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/access/weeks/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekTopicsLockedUntilUpgrade(t *testing.T) {
	gate, res := newGate()
	r := newRouter(gate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weeks/3/topics", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"LOCKED"`)

	res.plans["u1"] = entitlement.PlanBasic

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weeks/3/topics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"t3"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weeks/99/topics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopicQuestionsOmitSolutions(t *testing.T) {
	gate, _ := newGate()
	r := newRouter(gate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/t1/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"q-t1"`)
	assert.Contains(t, rec.Body.String(), `"week_number":1`)
	assert.NotContains(t, rec.Body.String(), "solution")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/t3/questions", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireWeekAndTopic(t *testing.T) {
	gate, _ := newGate()
	ctx := context.Background()

	d, err := gate.RequireWeek(ctx, user("u1"), 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = gate.RequireTopic(ctx, user("u1"), "t3")
	var locked *core.LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, ResourceTopic, locked.Resource)
	assert.ErrorIs(t, err, core.ErrLocked)
}
