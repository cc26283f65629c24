// Package rediscache implements cache.FreshnessHint as a short-TTL read
// path in front of the durable ResultStore, grounded on the teacher's
// internal/application.CacheConfig (Redis addr/DB/TTL) conventions.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config mirrors the teacher's CacheConfig.Redis block.
type Config struct {
	Addr              string
	DB                int
	TLS               bool
	DefaultTTLSeconds int
}

// DefaultTTL returns the configured TTL as a time.Duration.
func (c Config) DefaultTTL() time.Duration {
	if c.DefaultTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// Hint implements cache.FreshnessHint.
type Hint struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New constructs a Hint from a Config.
func New(cfg Config) *Hint {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	return &Hint{client: client, ttl: cfg.DefaultTTL(), prefix: "lppl:last_analysis_date:"}
}

// Close releases the underlying client connection.
func (h *Hint) Close() error {
	return h.client.Close()
}

// GetLastAnalysisDate returns the cached analysis_date for symbol if still
// within TTL. A miss (key absent or expired) returns ok=false, never an
// error — callers must treat it as "fall back to the durable store".
func (h *Hint) GetLastAnalysisDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	val, err := h.client.Get(ctx, h.prefix+symbol).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("rediscache: get %s: %w", symbol, err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// SetLastAnalysisDate records the freshly written analysis_date with the
// configured TTL.
func (h *Hint) SetLastAnalysisDate(ctx context.Context, symbol string, date time.Time) error {
	err := h.client.Set(ctx, h.prefix+symbol, date.Format(time.RFC3339), h.ttl).Err()
	if err != nil {
		return fmt.Errorf("rediscache: set %s: %w", symbol, err)
	}
	return nil
}
