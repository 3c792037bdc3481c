package main

import (
	"context"
	"fmt"
	"log/slog"

	"nominal/internal/platform/config"
	"nominal/internal/platform/kafka"
	"nominal/internal/platform/postgres"
	"nominal/internal/platform/redis"
	"nominal/internal/registry/cache"
	"nominal/internal/registry/outbox"
	"nominal/internal/registry/payment"
	"nominal/internal/registry/service"
	"nominal/internal/registry/store"
	"nominal/internal/registry/store/migrations"
	"nominal/pkg/domain"
)

// creditFunc funds an account; used to apply seed balances.
type creditFunc func(ctx context.Context, id domain.Identity, asset domain.AssetID, amount domain.Amount) error

// dependencies are the backends selected by configuration.
type dependencies struct {
	store     service.Store
	gateway   payment.Gateway
	credit    creditFunc
	cache     service.RecordCache
	publisher outbox.Publisher
	health    []healthCheck
	closers   []func() error
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func openDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	ok := false
	defer func() {
		if !ok {
			deps.Close()
		}
	}()

	switch cfg.Registry.Storage {
	case "postgres":
		db, err := postgres.Open(ctx, postgresConfig(cfg))
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		if err := postgres.Migrate(db, migrations.FS, postgres.Up); err != nil {
			return nil, err
		}
		ledger := payment.NewPostgres(db)
		deps.store = store.NewPostgres(db)
		deps.gateway = ledger
		deps.credit = ledger.Credit
		deps.health = append(deps.health, healthCheck{name: "postgres", check: db.PingContext})
		log.Info("using postgres storage")
	default:
		ledger := payment.NewMemory()
		deps.store = store.NewMemory()
		deps.gateway = ledger
		deps.credit = func(_ context.Context, id domain.Identity, asset domain.AssetID, amount domain.Amount) error {
			return ledger.Credit(id, asset, amount)
		}
		log.Warn("using in-memory storage; state is lost on restart")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		deps.closers = append(deps.closers, redisClient.Close)
		deps.cache = cache.NewRedis(redisClient.Client, cache.WithRedisTTL(cfg.Cache.RedisTTL))
		deps.health = append(deps.health, healthCheck{name: "redis", check: redisClient.Health})
	} else {
		deps.cache = cache.NewLocal(cfg.Cache.LocalTTL)
	}

	kafkaClient, err := kafka.New(kafka.Config{
		Brokers:           cfg.Kafka.Brokers,
		Topic:             cfg.Kafka.Topic,
		ClientID:          cfg.Kafka.ClientID,
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
		ProduceTimeout:    cfg.Kafka.ProduceTimeout,
	})
	if err != nil {
		return nil, err
	}
	if kafkaClient != nil {
		deps.closers = append(deps.closers, func() error { kafkaClient.Close(); return nil })
		if err := kafkaClient.EnsureTopic(ctx); err != nil {
			return nil, fmt.Errorf("ensure events topic: %w", err)
		}
		deps.publisher = outbox.NewKafkaPublisher(kafkaClient, kafkaClient.Topic())
		deps.health = append(deps.health, healthCheck{name: "kafka", check: kafkaClient.Health})
	} else {
		log.Warn("no kafka brokers configured; registry events are logged only")
		deps.publisher = outbox.NewLogPublisher(log)
	}

	ok = true
	return deps, nil
}
