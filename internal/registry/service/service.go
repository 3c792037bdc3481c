// Package service orchestrates the registry: name validation, uniqueness,
// sponsored-request authorization, fee settlement and the primary-name
// index, each operation committed atomically.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"nominal/internal/registry/guard"
	"nominal/internal/registry/metrics"
	"nominal/internal/registry/models"
	"nominal/internal/registry/payment"
	"nominal/internal/registry/signing"
	"nominal/internal/registry/store"
	dErrors "nominal/pkg/domain-errors"
	"nominal/pkg/platform/sentinel"
	"nominal/pkg/requestcontext"
)

// Store is the registry state plus its transaction boundary.
type Store interface {
	store.Store
	store.Tx
}

// RecordCache holds read-side copies of records. Failures are logged and
// the store is consulted instead.
type RecordCache interface {
	Get(ctx context.Context, name models.Name) (*models.Record, bool, error)
	// Fill caches record unless the name has an entry or was invalidated
	// recently.
	Fill(ctx context.Context, record *models.Record) error
	Invalidate(ctx context.Context, names ...models.Name) error
}

// Service runs registry operations. Every mutating operation executes in one
// store transaction; the payment gateway is called last inside it, so a
// failed transfer discards the registration and a failed check moves no
// funds.
type Service struct {
	store     Store
	gateway   payment.Gateway
	guard     *guard.Guard
	keyScheme signing.Scheme
	cache     RecordCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClock overrides the time source. Without it the request-scoped time
// from requestcontext is used.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithCache(c RecordCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithKeyScheme sets the scheme authorized keys must belong to. Defaults to
// ed25519.
func WithKeyScheme(scheme signing.Scheme) Option {
	return func(s *Service) {
		s.keyScheme = scheme
	}
}

// New constructs a Service.
func New(st Store, gateway payment.Gateway, g *guard.Guard, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if g == nil {
		return nil, errors.New("authorization guard is required")
	}
	s := &Service{
		store:     st,
		gateway:   gateway,
		guard:     g,
		keyScheme: signing.Ed25519,
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("nominal/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

// txFunc is one operation body. It returns the events to append to the
// outbox; they commit with the operation's other effects.
type txFunc func(ctx context.Context, st store.Store, now time.Time) ([]models.Event, error)

// run executes fn in a transaction with a span, metrics and error
// translation around it.
func (s *Service) run(ctx context.Context, op string, fn txFunc, attrs ...attribute.KeyValue) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := s.store.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		now := s.now(ctx)
		events, err := fn(ctx, st, now)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		requestID := requestcontext.RequestID(ctx)
		for i := range events {
			events[i].RequestID = requestID
		}
		if err := st.AppendEvents(ctx, events...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record events")
		}
		return nil
	})
	s.metrics.ObserveOperation(op, start)
	if err != nil {
		err = translate(err)
		s.metrics.IncrementFailure(op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

// translate gives every error leaving the service a code.
func translate(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update conflict")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry operation failed")
	}
}

func loadConfig(ctx context.Context, st store.Store) (*models.Config, error) {
	cfg, err := st.LoadConfig(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registry is not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry config")
	}
	return cfg, nil
}

// findRecord loads the record for name, mapping absence to NameNotFound.
func findRecord(ctx context.Context, st store.Store, name models.Name) (*models.Record, error) {
	record, err := st.FindRecord(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNameNotFound, "name is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

// invalidate drops cached copies after a committed mutation.
func (s *Service) invalidate(ctx context.Context, names ...models.Name) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, names...); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate record cache",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
