// Package outbox relays committed registry events to the event stream.
//
// Services append events to the store's outbox inside the operation's
// transaction. The relay reads a batch of pending events, publishes it in
// order and then marks it published. No store transaction or lock is held
// while the publisher runs. Delivery is at-least-once: a failed mark after a
// successful publish republishes the batch, so consumers dedupe on the
// event id.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nominal/internal/registry/models"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nominal_outbox_events_published_total",
		Help: "Total number of registry events relayed to the event stream",
	})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nominal_outbox_publish_failures_total",
		Help: "Total number of failed outbox relay batches",
	})
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Publisher delivers events downstream. It must not return until every
// event is durably accepted or the batch has failed.
type Publisher interface {
	Publish(ctx context.Context, events ...models.Event) error
}

// Outbox is the slice of the store the relay reads and acknowledges.
type Outbox interface {
	PendingEvents(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, ids ...uuid.UUID) error
}

// Relay drains the outbox.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// Option configures the Relay.
type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func New(outbox Outbox, publisher Publisher, opts ...Option) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("store is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run relays until ctx is cancelled. A failed batch is logged and retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					}
					break
				}
				if n < r.batchSize {
					break
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush publishes one batch and returns how many events it relayed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.outbox.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		publishFailures.Inc()
		return 0, err
	}
	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids...); err != nil {
		return 0, err
	}
	eventsPublished.Add(float64(len(events)))
	return len(events), nil
}
