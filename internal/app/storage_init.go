package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/blackstore/internal/storage/redisstore"
)

type healthProbe struct {
	name     string
	critical bool
	check    func(context.Context) error
}

// runtimeDependencies — репозитории выбранного хранилища и ресурсы, которые
// нужно закрыть при остановке.
type runtimeDependencies struct {
	users       domain.UserRepository
	orders      domain.OrderRepository
	timeline    domain.TimelineRepository
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository

	redis   redis.UniversalClient
	probes  []healthProbe
	closers []func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver. Outbox
// в режиме redis остаётся в памяти: его читает только воркер этого экземпляра.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			users:       memory.NewUserRepository(),
			orders:      memory.NewOrderRepository(),
			timeline:    memory.NewTimelineRepository(),
			outbox:      memory.NewOutboxRepository(),
			idempotency: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
		return &runtimeDependencies{
			users:       postgres.NewUserRepository(store),
			orders:      postgres.NewOrderRepository(store),
			timeline:    postgres.NewTimelineRepository(store),
			outbox:      postgres.NewOutboxRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			probes:      []healthProbe{{name: "postgres", critical: true, check: store.Ping}},
			closers:     []func() error{store.Close},
		}, nil

	case StorageDriverRedis:
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis storage")
		return &runtimeDependencies{
			users:       redisstore.NewUserRepository(store),
			orders:      redisstore.NewOrderRepository(store),
			timeline:    redisstore.NewTimelineRepository(store),
			outbox:      memory.NewOutboxRepository(),
			idempotency: redisstore.NewIdempotencyRepository(store),
			redis:       store.Client(),
			probes:      []healthProbe{{name: "redis", critical: true, check: store.Ping}},
			closers:     []func() error{store.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initBroker выбирает доставку изменений. Для redis возвращает также функцию,
// которую нужно запустить в отдельной горутине.
func initBroker(ctx context.Context, cfg Config, deps *runtimeDependencies, m *metrics.StoreMetrics, logger *log.Entry) (realtime.Broker, func(context.Context) error, error) {
	hub := realtime.NewHub(
		realtime.WithHubMetrics(m),
		realtime.WithHubLogger(logger.WithField("component", "realtime-hub")),
	)
	if cfg.RealtimeDriver != RealtimeDriverRedis {
		return hub, nil, nil
	}

	client := deps.redis
	if client == nil {
		c := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("ping realtime redis %s: %w", cfg.RedisAddr, err)
		}
		deps.closers = append(deps.closers, c.Close)
		deps.probes = append(deps.probes, healthProbe{
			name:  "realtime-redis",
			check: func(ctx context.Context) error { return c.Ping(ctx).Err() },
		})
		client = c
	}

	broker := realtime.NewRedisBroker(client, hub, "", logger.WithField("component", "realtime-redis"))
	return broker, broker.Run, nil
}
