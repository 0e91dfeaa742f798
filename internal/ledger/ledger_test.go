// AngelaMos | 2026
// ledger_test.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

// memStore is a serialising in-memory ledger. WithTx holds the lock for the
// whole callback and restores the snapshot when it fails.
type memStore struct {
	mu      sync.Mutex
	users   map[string]bool
	xp      map[string]int64
	entries []Entry
	clock   time.Time
}

func newMemStore(users ...string) *memStore {
	s := &memStore{
		users: map[string]bool{},
		xp:    map[string]int64{},
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

func (s *memStore) WithTx(_ context.Context, fn func(tx core.DBTX) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	xp := make(map[string]int64, len(s.xp))
	for k, v := range s.xp {
		xp[k] = v
	}
	entries := append([]Entry(nil), s.entries...)

	if err := fn(nil); err != nil {
		s.xp = xp
		s.entries = entries
		return err
	}
	return nil
}

func (s *memStore) repo(core.DBTX) Repository { return s }

func (s *memStore) Credit(_ context.Context, userID string, amount int64) (int64, error) {
	if !s.users[userID] {
		return 0, fmt.Errorf("credit xp: user: %w", core.ErrNotFound)
	}
	s.xp[userID] += amount
	return s.xp[userID], nil
}

func (s *memStore) Debit(_ context.Context, userID string, cost int64) (int64, bool, error) {
	bal, ok := s.xp[userID]
	if !ok || bal < cost {
		return 0, false, nil
	}
	s.xp[userID] = bal - cost
	return s.xp[userID], true, nil
}

func (s *memStore) Balance(_ context.Context, userID string) (int64, error) {
	return s.xp[userID], nil
}

func (s *memStore) Append(_ context.Context, e *Entry) error {
	s.clock = s.clock.Add(time.Second)
	e.CreatedAt = s.clock
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memStore) List(_ context.Context, userID string, page core.PageParams) ([]Entry, int, error) {
	var mine []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			mine = append(mine, s.entries[i])
		}
	}
	total := len(mine)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.PageSize
	if end > total {
		end = total
	}
	return mine[start:end], total, nil
}

func (s *memStore) Sum(_ context.Context, userID string) (int64, error) {
	var sum int64
	for _, e := range s.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (s *memStore) TotalsByType(context.Context) ([]TypeTotal, error) {
	byType := map[EntryType]*TypeTotal{}
	for _, e := range s.entries {
		t, ok := byType[e.Type]
		if !ok {
			t = &TypeTotal{Type: e.Type}
			byType[e.Type] = t
		}
		t.Entries++
		t.Amount += e.Amount
	}
	out := make([]TypeTotal, 0, len(byType))
	for _, t := range byType {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *memStore) Drifts(ctx context.Context, limit int) ([]Drift, error) {
	var out []Drift
	for userID, xp := range s.xp {
		sum, _ := s.Sum(ctx, userID)
		if sum != xp && len(out) < limit {
			out = append(out, Drift{UserID: userID, XP: xp, LedgerSum: sum})
		}
	}
	return out, nil
}

func newTestService(users ...string) (*Service, *memStore) {
	store := newMemStore(users...)
	return NewService(nil, store, store.repo), store
}

func earn(t *testing.T, svc *Service, userID string, amount int64) {
	t.Helper()
	_, err := svc.Earn(context.Background(), EarnInput{
		UserID: userID,
		Amount: amount,
		Type:   EntryBonus,
	})
	require.NoError(t, err)
}

func TestEarnAppendsPositiveEntry(t *testing.T) {
	svc, store := newTestService("u1")

	res, err := svc.Earn(context.Background(), EarnInput{
		UserID:   "u1",
		Amount:   20,
		Type:     EntryEarnPass,
		Metadata: map[string]any{"question_id": "q1"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(20), res.Balance)
	assert.Equal(t, int64(0), res.PreviousBalance)
	assert.Equal(t, int64(20), res.Entry.Amount)
	assert.Equal(t, int64(20), res.Entry.BalanceAfter)
	assert.Len(t, res.Entry.ID, 26)
	assert.JSONEq(t, `{"question_id":"q1"}`, string(res.Entry.Metadata))
	assert.Len(t, store.entries, 1)
}

func TestEarnValidation(t *testing.T) {
	svc, _ := newTestService("u1")

	tests := []struct {
		name string
		in   EarnInput
	}{
		{"debit type", EarnInput{UserID: "u1", Amount: 10, Type: EntryHintPenalty}},
		{"zero amount", EarnInput{UserID: "u1", Amount: 0, Type: EntryBonus}},
		{"negative amount", EarnInput{UserID: "u1", Amount: -5, Type: EntryBonus}},
		{"missing user", EarnInput{Amount: 5, Type: EntryBonus}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Earn(context.Background(), tt.in)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestEarnUnknownUser(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.Earn(context.Background(), EarnInput{
		UserID: "ghost",
		Amount: 10,
		Type:   EntryBonus,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, store.entries)
}

func TestSpendValidation(t *testing.T) {
	svc, _ := newTestService("u1")
	earn(t, svc, "u1", 100)

	_, err := svc.Spend(context.Background(), SpendInput{UserID: "u1", Cost: 10, Type: EntryBonus})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Spend(context.Background(), SpendInput{UserID: "u1", Cost: 0, Type: EntryHintPenalty})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSpendDebitsAndRecordsNegativeEntry(t *testing.T) {
	svc, _ := newTestService("u1")
	earn(t, svc, "u1", 100)

	res, err := svc.Spend(context.Background(), SpendInput{
		UserID: "u1",
		Cost:   30,
		Type:   EntryHintPenalty,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(70), res.Balance)
	assert.Equal(t, int64(-30), res.Entry.Amount)
	assert.Equal(t, int64(70), res.Entry.BalanceAfter)
	assert.Equal(t, EntryHintPenalty, res.Entry.Type)
	assert.JSONEq(t, `{}`, string(res.Entry.Metadata))
}

func TestSpendInsufficientFundsWritesNothing(t *testing.T) {
	svc, store := newTestService("u1")
	earn(t, svc, "u1", 45)

	_, err := svc.Spend(context.Background(), SpendInput{
		UserID: "u1",
		Cost:   50,
		Type:   EntryRevealPenalty,
	})
	require.Error(t, err)

	var funds *core.InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, int64(50), funds.Required)
	assert.Equal(t, int64(45), funds.Available)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	balance, err := svc.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), balance)
	assert.Len(t, store.entries, 1)
}

func TestSpendWithoutProgressRow(t *testing.T) {
	svc, _ := newTestService("u1")

	_, err := svc.Spend(context.Background(), SpendInput{
		UserID: "u1",
		Cost:   10,
		Type:   EntryHintPenalty,
	})

	var funds *core.InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, int64(0), funds.Available)
}

func TestLedgerSumMatchesBalance(t *testing.T) {
	svc, _ := newTestService("u1")
	ctx := context.Background()

	earn(t, svc, "u1", 100)
	earn(t, svc, "u1", 20)
	_, err := svc.Spend(ctx, SpendInput{UserID: "u1", Cost: 10, Type: EntryHintPenalty})
	require.NoError(t, err)
	_, err = svc.Spend(ctx, SpendInput{UserID: "u1", Cost: 500, Type: EntryRevealPenalty})
	require.Error(t, err)
	_, err = svc.Spend(ctx, SpendInput{UserID: "u1", Cost: 50, Type: EntryRevealPenalty})
	require.NoError(t, err)

	c, err := svc.VerifyConsistency(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.Consistent)
	assert.Equal(t, int64(60), c.XP)
	assert.Equal(t, int64(60), c.LedgerSum)
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService("u1")
	earn(t, svc, "u1", 100)

	const workers = 40

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Spend(context.Background(), SpendInput{
				UserID: "u1",
				Cost:   10,
				Type:   EntryHintPenalty,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, core.ErrInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, workers-10, rejected)

	c, err := svc.VerifyConsistency(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.XP)
	assert.True(t, c.Consistent)
}

func TestHistoryNewestFirstAndPaged(t *testing.T) {
	svc, _ := newTestService("u1", "u2")
	for i := 1; i <= 5; i++ {
		earn(t, svc, "u1", int64(i))
	}
	earn(t, svc, "u2", 99)

	entries, total, err := svc.History(
		context.Background(),
		"u1",
		core.PageParams{Page: 1, PageSize: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(5), entries[0].Amount)
	assert.Equal(t, int64(4), entries[1].Amount)
}

func TestEconomyStats(t *testing.T) {
	svc, store := newTestService("u1", "u2")
	earn(t, svc, "u1", 100)
	earn(t, svc, "u2", 40)
	_, err := svc.Spend(context.Background(), SpendInput{UserID: "u1", Cost: 30, Type: EntryHintPenalty})
	require.NoError(t, err)

	store.xp["u2"] = 1000

	stats, err := svc.EconomyStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(140), stats.Credited)
	assert.Equal(t, int64(30), stats.Debited)
	require.Len(t, stats.Drifts, 1)
	assert.Equal(t, "u2", stats.Drifts[0].UserID)
	assert.Equal(t, int64(40), stats.Drifts[0].LedgerSum)
}

func withPrincipal(p principal.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(principal.WithContext(r.Context(), p)))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func TestHandlerBalance(t *testing.T) {
	svc, _ := newTestService("u1")
	earn(t, svc, "u1", 1200)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, withPrincipal(principal.New("u1", principal.RoleUser)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/balance", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"xp":1200`)
	assert.Contains(t, rec.Body.String(), `"rank":"SILVER"`)
}

func TestHandlerHistoryRequiresPrincipal(t *testing.T) {
	svc, _ := newTestService("u1")

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerGrantBonus(t *testing.T) {
	svc, store := newTestService("admin", "u1")

	r := chi.NewRouter()
	NewHandler(svc).RegisterAdminRoutes(
		r,
		withPrincipal(principal.New("admin", principal.RoleAdmin)),
		passthrough,
	)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(
		http.MethodPost,
		"/admin/users/u1/bonus",
		strings.NewReader(`{"amount":75,"description":"event"}`),
	)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":75`)
	assert.Equal(t, int64(75), store.xp["u1"])
	assert.Equal(t, EntryBonus, store.entries[0].Type)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(
		http.MethodPost,
		"/admin/users/u1/bonus",
		strings.NewReader(`{"amount":-1}`),
	)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(
		http.MethodPost,
		"/admin/users/ghost/bonus",
		strings.NewReader(`{"amount":5}`),
	)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
