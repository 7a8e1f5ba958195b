// Package app собирает сервис BlackStore из настроек и управляет его жизненным циклом.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/catalog"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
	"github.com/vladislavdragonenkov/blackstore/internal/health"
	"github.com/vladislavdragonenkov/blackstore/internal/httpapi"
	"github.com/vladislavdragonenkov/blackstore/internal/identity"
	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/blackstore/internal/service/orders"
	"github.com/vladislavdragonenkov/blackstore/internal/service/profile"
	"github.com/vladislavdragonenkov/blackstore/internal/session"
)

// Run запускает HTTP API, сервер метрик и фоновые воркеры и блокируется до
// отмены ctx или падения HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	storeMetrics := metrics.NewStoreMetrics()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	broker, runBroker, err := initBroker(ctx, cfg, deps, storeMetrics, logger)
	if err != nil {
		return err
	}

	provider, err := newIdentityProvider(cfg, logger)
	if err != nil {
		return err
	}

	catalogClient := catalog.NewClient(cfg.CatalogURL,
		catalog.WithTimeout(cfg.CatalogTimeout),
		catalog.WithMetrics(storeMetrics),
		catalog.WithLogger(logger.WithField("component", "catalog")),
	)
	profiles := profile.NewService(deps.users, broker, logger.WithField("component", "profile"))

	producer := initKafkaProducer(cfg.kafkaBrokers(), logger)
	defer closeKafka(producer, logger)

	orderOptions := []orders.Option{
		orders.WithTimeline(deps.timeline),
		orders.WithBroker(broker),
		orders.WithMetrics(storeMetrics),
		orders.WithLogger(logger.WithField("component", "orders")),
	}
	if producer != nil {
		orderOptions = append(orderOptions, orders.WithOutbox(deps.outbox))
	}
	orderService := orders.NewService(deps.orders, deps.users, orderOptions...)

	secret := cfg.SessionSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return err
		}
		logger.Warn("session secret is not set, using a random one: sessions end on restart")
	}
	sessions, err := session.NewManager(session.Config{Secret: secret, TTL: cfg.SessionTTL},
		provider, profiles, catalogClient, broker, storeMetrics, logger.WithField("component", "sessions"))
	if err != nil {
		return err
	}

	api := httpapi.NewServer(httpapi.Deps{
		Sessions:    sessions,
		Orders:      orderService,
		Profiles:    profiles,
		Broker:      broker,
		Idempotency: deps.idempotency,
		Metrics:     storeMetrics,
		Logger:      logger.WithField("component", "http-api"),
	})

	healthHandler := health.NewHandler()
	for _, p := range deps.probes {
		healthHandler.Register(p.name, p.critical, p.check)
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	spawn := func(name string, fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			logger.WithField("worker", name).Debug("worker started")
			fn(workersCtx)
		}()
	}
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	spawn("sessions", sessions.Run)
	spawn("idempotency-cleanup", idempotency.NewCleanupWorker(deps.idempotency,
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
	).Run)
	if producer != nil {
		spawn("outbox", newOutboxWorker(cfg, deps.outbox, producer, logger).Run)
	}
	if runBroker != nil {
		spawn("realtime-redis", func(ctx context.Context) {
			if err := runBroker(ctx); err != nil {
				logger.WithError(err).Warn("realtime fan-out stopped")
			}
		})
	}

	opsSrv, err := startOpsServer(cfg.MetricsAddr, healthHandler, logger)
	if err != nil {
		return err
	}
	defer shutdownHTTP(opsSrv, cfg.ShutdownTimeout, logger)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	httpSrv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("HTTP API listening")
		errCh <- httpSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP API")
		healthHandler.Drain()
		api.CloseStreams()
		shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newIdentityProvider(cfg Config, logger *log.Entry) (domain.IdentityProvider, error) {
	switch cfg.IdentityProvider {
	case IdentityProviderGoogle:
		return identity.NewGoogleProvider(cfg.GoogleClientID, "", &http.Client{Timeout: 10 * time.Second},
			logger.WithField("component", "google-identity")), nil
	case IdentityProviderDev:
		logger.Warn("dev identity provider enabled: any non-empty credential signs in")
		return identity.NewDevProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported identity provider %q", cfg.IdentityProvider)
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
