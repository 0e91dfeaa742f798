// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/coursegate/internal/config"
)

// Redis is the shared client behind the content cache and the rate limiter.
// Every key it builds is namespaced by the configured prefix.
type Redis struct {
	Client *redis.Client
	prefix string
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = 30 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts), prefix: cfg.KeyPrefix}
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close() //nolint:errcheck // cleanup on connection failure
		return nil, err
	}

	return r, nil
}

// NewRedisFromClient wraps an existing client, used by tests against
// miniredis.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{Client: client, prefix: prefix}
}

// Key joins parts under the configured namespace, e.g. "cg:content:week:3".
func (r *Redis) Key(parts ...string) string {
	return r.prefix + strings.Join(parts, ":")
}

// GetJSON decodes key into dest. A missing key reports false with no error.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.Client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteMatching removes every key matching pattern with SCAN so large
// keyspaces never block the server.
func (r *Redis) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := r.Client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.Client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete %s: %w", pattern, err)
			}
			removed += int(n)
		}
		if cursor = next; cursor == 0 {
			return removed, nil
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
