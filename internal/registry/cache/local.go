package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"nominal/internal/registry/models"
)

// Local is a per-process cache for single-instance deployments.
type Local struct {
	c     *gocache.Cache
	guard time.Duration
}

// invalidated marks a name whose cached copy was dropped. It blocks fills
// until it expires.
type invalidated struct{}

// NewLocal creates a cache whose entries expire after ttl.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Local{c: gocache.New(ttl, 2*ttl), guard: defaultFillGuard}
}

// WithFillGuard sets how long an invalidation blocks fills.
func (l *Local) WithFillGuard(d time.Duration) *Local {
	if d > 0 {
		l.guard = d
	}
	return l
}

func (l *Local) Get(_ context.Context, name models.Name) (*models.Record, bool, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.WithLabelValues("local").Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	v, ok := l.c.Get(string(name))
	if !ok {
		return nil, false, nil
	}
	record, ok := v.(models.Record)
	if !ok {
		return nil, false, nil
	}
	return &record, true, nil
}

// Fill stores a copy when the name has no entry and no recent
// invalidation. A rejected fill is not an error.
func (l *Local) Fill(_ context.Context, record *models.Record) error {
	_ = l.c.Add(string(record.Name), *record, gocache.DefaultExpiration)
	return nil
}

func (l *Local) Invalidate(_ context.Context, names ...models.Name) error {
	for _, name := range names {
		l.c.Set(string(name), invalidated{}, l.guard)
	}
	return nil
}
