package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/app"
	"github.com/vladislavdragonenkov/blackstore/internal/version"
)

const (
	envHTTPAddr                    = "BLACKSTORE_HTTP_ADDR"
	envMetricsAddr                 = "BLACKSTORE_METRICS_ADDR"
	envLogLevel                    = "BLACKSTORE_LOG_LEVEL"
	envShutdownTimeout             = "BLACKSTORE_SHUTDOWN_TIMEOUT"
	envStorageDriver               = "BLACKSTORE_STORAGE_DRIVER"
	envPostgresDSN                 = "BLACKSTORE_POSTGRES_DSN"
	envPostgresAutoMigrate         = "BLACKSTORE_POSTGRES_AUTO_MIGRATE"
	envRedisAddr                   = "BLACKSTORE_REDIS_ADDR"
	envRedisPassword               = "BLACKSTORE_REDIS_PASSWORD"
	envRedisDB                     = "BLACKSTORE_REDIS_DB"
	envRealtimeDriver              = "BLACKSTORE_REALTIME_DRIVER"
	envCatalogURL                  = "BLACKSTORE_CATALOG_URL"
	envCatalogTimeout              = "BLACKSTORE_CATALOG_TIMEOUT"
	envIdentityProvider            = "BLACKSTORE_IDENTITY_PROVIDER"
	envGoogleClientID              = "BLACKSTORE_GOOGLE_CLIENT_ID"
	envSessionSecret               = "BLACKSTORE_SESSION_SECRET"
	envSessionTTL                  = "BLACKSTORE_SESSION_TTL"
	envKafkaBrokers                = "BLACKSTORE_KAFKA_BROKERS"
	envKafkaTopic                  = "BLACKSTORE_KAFKA_TOPIC"
	envOutboxPollInterval          = "BLACKSTORE_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "BLACKSTORE_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "BLACKSTORE_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "BLACKSTORE_OUTBOX_RETRY_DELAY"
	envIdempotencyCleanupInterval  = "BLACKSTORE_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "BLACKSTORE_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования; неизвестный уровень даёт info.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// readConfigFromEnv собирает конфигурацию поверх значений по умолчанию.
// Некорректные значения не применяются, а возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	lower := func(key string, dst *string) {
		str(key, dst)
		*dst = strings.ToLower(*dst)
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, min int, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, min)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, allowZero bool, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, allowZero)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	duration(envShutdownTimeout, false, &cfg.ShutdownTimeout)

	lower(envStorageDriver, &cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envRedisAddr, &cfg.RedisAddr)
	str(envRedisPassword, &cfg.RedisPassword)
	integer(envRedisDB, 0, &cfg.RedisDB)
	lower(envRealtimeDriver, &cfg.RealtimeDriver)

	str(envCatalogURL, &cfg.CatalogURL)
	duration(envCatalogTimeout, false, &cfg.CatalogTimeout)

	lower(envIdentityProvider, &cfg.IdentityProvider)
	str(envGoogleClientID, &cfg.GoogleClientID)
	str(envSessionSecret, &cfg.SessionSecret)
	duration(envSessionTTL, false, &cfg.SessionTTL)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	duration(envOutboxPollInterval, false, &cfg.OutboxPollInterval)
	integer(envOutboxBatchSize, 1, &cfg.OutboxBatchSize)
	integer(envOutboxMaxAttempts, 1, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, true, &cfg.OutboxRetryDelay)

	duration(envIdempotencyCleanupInterval, false, &cfg.IdempotencyCleanupInterval)
	integer(envIdempotencyCleanupBatchSize, 1, &cfg.IdempotencyCleanupBatchSize)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseInt(raw string, min int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if v < min {
		return 0, fmt.Errorf("must be >= %d", min)
	}
	return v, nil
}

func parseDuration(raw string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func main() {
	setupLogger(os.Getenv(envLogLevel))
	decimal.MarshalJSONWithoutQuotes = true

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":      version.Info().String(),
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"realtime":     cfg.RealtimeDriver,
		"identity":     cfg.IdentityProvider,
	}).Info("запускаем BlackStore")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("BlackStore остановлен")
}
