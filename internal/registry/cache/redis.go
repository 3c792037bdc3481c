// Package cache keeps read-side copies of name records. The store stays
// authoritative: entries are dropped after every committed mutation and
// expire on their own.
//
// Fills only land on an empty key, and invalidation leaves a short-lived
// marker in place of the entry. A reader that loaded a record before a
// mutation committed therefore cannot put the stale copy back.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"nominal/internal/registry/models"
)

var lookupDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "nominal_record_cache_lookup_duration_ms",
	Help:    "Latency of record cache lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
}, []string{"backend"})

const (
	recordKeyPrefix = "nominal:record:"
	defaultTTL      = 5 * time.Minute
	// defaultFillGuard covers the slowest read that can race a mutation:
	// reads outside a transaction share its timeout.
	defaultFillGuard = 5 * time.Second
	// invalidatedMarker is never valid record JSON.
	invalidatedMarker = "invalidated"
)

// Redis shares cached records across instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	guard  time.Duration
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets how long an entry lives.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRedisFillGuard sets how long an invalidation blocks fills.
func WithRedisFillGuard(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.guard = d
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, guard: defaultFillGuard}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Get returns the cached record, or false on a miss.
func (r *Redis) Get(ctx context.Context, name models.Name) (*models.Record, bool, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.WithLabelValues("redis").Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := r.client.Get(ctx, recordKeyPrefix+string(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached record: %w", err)
	}
	if string(raw) == invalidatedMarker {
		return nil, false, nil
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("decode cached record: %w", err)
	}
	return &record, true, nil
}

// Fill stores record with SET NX, so it never replaces an entry or an
// invalidation marker.
func (r *Redis) Fill(ctx context.Context, record *models.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode cached record: %w", err)
	}
	if err := r.client.SetNX(ctx, recordKeyPrefix+string(record.Name), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("fill cached record: %w", err)
	}
	return nil
}

// Invalidate replaces the entries for names with markers in one round trip.
func (r *Redis) Invalidate(ctx context.Context, names ...models.Name) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range names {
			pipe.Set(ctx, recordKeyPrefix+string(name), invalidatedMarker, r.guard)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached records: %w", err)
	}
	return nil
}
