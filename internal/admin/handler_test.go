// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(next http.Handler) http.Handler { return next }

func serve(h *Handler, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSystemStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Probes: []Probe{
			{Name: "database", Ping: func(context.Context) error { return nil }},
			{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }},
		},
		DBStats:       func() sql.DBStats { return sql.DBStats{OpenConnections: 3, InUse: 1} },
		RedisStats:    func() *redis.PoolStats { return &redis.PoolStats{Hits: 7} },
		SchemaVersion: func() (uint, bool, error) { return 1, false, nil },
		Broker: &BrokerCounters{
			Dropped: func() int64 { return 2 },
			Failed:  func() int64 { return 1 },
		},
	})

	rec := serve(h, http.MethodGet, "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Data.Dependencies, 2)
	assert.Equal(t, "database", body.Data.Dependencies[0].Name)
	assert.True(t, body.Data.Dependencies[0].Healthy)
	assert.False(t, body.Data.Dependencies[1].Healthy)
	assert.Equal(t, "down", body.Data.Dependencies[1].Error)

	require.NotNil(t, body.Data.Pools.Database)
	assert.Equal(t, 3, body.Data.Pools.Database.Open)
	require.NotNil(t, body.Data.Pools.Redis)
	assert.Equal(t, uint32(7), body.Data.Pools.Redis.Hits)

	require.NotNil(t, body.Data.Schema)
	assert.Equal(t, uint(1), body.Data.Schema.Version)
	require.NotNil(t, body.Data.AuditBroker)
	assert.Equal(t, int64(2), body.Data.AuditBroker.Dropped)
	assert.NotEmpty(t, body.Data.Runtime.GoVersion)
}

func TestSystemStatsOmitsUnconfiguredSections(t *testing.T) {
	h := NewHandler(HandlerConfig{
		SchemaVersion: func() (uint, bool, error) { return 0, false, errors.New("no table") },
	})

	rec := serve(h, http.MethodGet, "/admin/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SystemStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Data.Dependencies)
	assert.Nil(t, body.Data.Pools.Database)
	assert.Nil(t, body.Data.AuditBroker)
	require.NotNil(t, body.Data.Schema)
	assert.Equal(t, "no table", body.Data.Schema.Error)
}

func TestPurgeCache(t *testing.T) {
	calls := 0
	h := NewHandler(HandlerConfig{
		CachePurge: func(context.Context) (int, error) {
			calls++
			return 4, nil
		},
	})

	rec := serve(h, http.MethodPost, "/admin/cache/purge")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"purged":4`)
	assert.Equal(t, 1, calls)

	rec = serve(NewHandler(HandlerConfig{}), http.MethodPost, "/admin/cache/purge")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"purged":0`)
}
