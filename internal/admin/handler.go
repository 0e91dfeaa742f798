// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/coursegate/internal/core"
)

// Probe is a named dependency ping shown on the stats page.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

// BrokerCounters reports audit events the publisher had to give up on.
type BrokerCounters struct {
	Dropped func() int64
	Failed  func() int64
}

type HandlerConfig struct {
	Probes     []Probe
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	// SchemaVersion reports the applied migration and its dirty flag.
	SchemaVersion func() (uint, bool, error)
	Broker        *BrokerCounters
	// CachePurge drops cached catalog entries after content edits.
	CachePurge func(ctx context.Context) (int, error)
}

type Handler struct {
	cfg     HandlerConfig
	started time.Time
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg, started: time.Now()}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/admin/stats", h.GetSystemStats)
		r.Get("/admin/stats/pools", h.GetPoolStats)
		r.Get("/admin/stats/runtime", h.GetRuntimeStats)
		r.Post("/admin/cache/purge", h.PurgeCache)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	core.OK(w, SystemStatsResponse{
		Dependencies: h.probe(ctx),
		Pools:        h.pools(),
		Schema:       h.schema(),
		AuditBroker:  h.broker(),
		Runtime:      h.runtime(),
	})
}

func (h *Handler) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.pools())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.runtime())
}

func (h *Handler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if h.cfg.CachePurge == nil {
		core.OK(w, CachePurgeResponse{})
		return
	}

	n, err := h.cfg.CachePurge(r.Context())
	if err != nil {
		core.JSONError(w, err)
		return
	}

	slog.Info("content cache purged", "keys", n)
	core.OK(w, CachePurgeResponse{Purged: n})
}

func (h *Handler) probe(ctx context.Context) []DependencyStatus {
	out := make([]DependencyStatus, len(h.cfg.Probes))

	var wg sync.WaitGroup
	for i, p := range h.cfg.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := DependencyStatus{Name: p.Name, Healthy: true}
			start := time.Now()
			if err := p.Ping(ctx); err != nil {
				status.Healthy = false
				status.Error = err.Error()
			}
			status.Latency = time.Since(start).String()
			out[i] = status
		}()
	}
	wg.Wait()

	return out
}

func (h *Handler) pools() PoolStats {
	var out PoolStats

	if h.cfg.DBStats != nil {
		s := h.cfg.DBStats()
		out.Database = &DBPoolStats{
			MaxOpen:      s.MaxOpenConnections,
			Open:         s.OpenConnections,
			InUse:        s.InUse,
			Idle:         s.Idle,
			WaitCount:    s.WaitCount,
			WaitDuration: s.WaitDuration.String(),
		}
	}

	if h.cfg.RedisStats != nil {
		if s := h.cfg.RedisStats(); s != nil {
			out.Redis = &RedisPoolStats{
				Hits:       s.Hits,
				Misses:     s.Misses,
				Timeouts:   s.Timeouts,
				TotalConns: s.TotalConns,
				IdleConns:  s.IdleConns,
			}
		}
	}

	return out
}

func (h *Handler) schema() *SchemaStatus {
	if h.cfg.SchemaVersion == nil {
		return nil
	}

	version, dirty, err := h.cfg.SchemaVersion()
	if err != nil {
		return &SchemaStatus{Error: err.Error()}
	}
	return &SchemaStatus{Version: version, Dirty: dirty}
}

func (h *Handler) broker() *BrokerStatus {
	if h.cfg.Broker == nil {
		return nil
	}
	return &BrokerStatus{
		Dropped: h.cfg.Broker.Dropped(),
		Failed:  h.cfg.Broker.Failed(),
	}
}

func (h *Handler) runtime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    mem.HeapAlloc,
		NumGC:        mem.NumGC,
	}
}
