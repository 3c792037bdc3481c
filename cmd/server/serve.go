package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	jwttoken "nominal/internal/jwt_token"
	"nominal/internal/platform/config"
	"nominal/internal/platform/httpserver"
	"nominal/internal/platform/logger"
	platformmetrics "nominal/internal/platform/metrics"
	"nominal/internal/platform/middleware"
	"nominal/internal/platform/tracing"
	"nominal/internal/registry/guard"
	"nominal/internal/registry/handler"
	registrymetrics "nominal/internal/registry/metrics"
	"nominal/internal/registry/outbox"
	"nominal/internal/registry/service"
	"nominal/internal/registry/signing"
	"nominal/pkg/platform/httputil"
)

// runServe wires the registry and runs the HTTP server and the outbox relay
// until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set NOMINAL_AUTH_JWT_SIGNING_KEY")
	}

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	deps, err := openDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	scheme, err := signing.ParseScheme(cfg.Registry.KeyScheme)
	if err != nil {
		return err
	}
	verifier, err := signing.New(scheme, deps.store)
	if err != nil {
		return err
	}
	g, err := guard.New(cfg.Registry.Origin, verifier)
	if err != nil {
		return err
	}

	svc, err := service.New(deps.store, deps.gateway, g,
		service.WithLogger(log),
		service.WithMetrics(registrymetrics.New(prometheus.DefaultRegisterer)),
		service.WithTracer(tp.Tracer()),
		service.WithCache(deps.cache),
		service.WithKeyScheme(scheme),
	)
	if err != nil {
		return err
	}

	if cfg.Registry.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.Registry.SeedFile)
		if err != nil {
			return err
		}
		if err := applySeed(ctx, svc, deps.credit, seed, log); err != nil {
			return err
		}
	}

	relay, err := outbox.New(deps.store, deps.publisher,
		outbox.WithLogger(log),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithInterval(cfg.Outbox.Interval),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	httpMetrics := platformmetrics.New(prometheus.DefaultRegisterer)
	router := newRouter(cfg, log, svc, jwttoken.NewJWTServiceAdapter(jwtService), httpMetrics, deps.health)
	srv := httpserver.New(cfg.Server, router)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	group.Go(func() error {
		if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return group.Wait()
}

func newRouter(
	cfg *config.Config,
	log *slog.Logger,
	svc handler.Service,
	validator middleware.JWTValidator,
	httpMetrics *platformmetrics.Metrics,
	health []healthCheck,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Handle("/metrics", platformmetrics.Handler(prometheus.DefaultGatherer))
	r.Get("/health", healthHandler(health))

	handler.New(svc, log).Register(r, middleware.RequireAuth(validator, log))
	return r
}

// healthCheck probes one dependency.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]string{}
		for _, c := range checks {
			if err := c.check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				report[c.name] = err.Error()
				continue
			}
			report[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": report})
	}
}
