package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/blackstore/internal/catalog"
	"github.com/vladislavdragonenkov/blackstore/internal/messaging/kafka"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)

// Драйверы доставки изменений подписчикам.
const (
	RealtimeDriverMemory = "memory"
	RealtimeDriverRedis  = "redis"
)

// Провайдеры входа.
const (
	IdentityProviderGoogle = "google"
	IdentityProviderDev    = "dev"
)

// Config описывает настройки запуска. Все поля сравнимы, чтобы конфигурацию
// можно было сверять целиком.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RealtimeDriver      string

	CatalogURL     string
	CatalogTimeout time.Duration

	IdentityProvider string
	GoogleClientID   string
	SessionSecret    string
	SessionTTL       time.Duration

	// KafkaBrokers — список брокеров через запятую; пустой отключает outbox.
	KafkaBrokers       string
	KafkaTopic         string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		ShutdownTimeout:             10 * time.Second,
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		RealtimeDriver:              RealtimeDriverMemory,
		CatalogURL:                  catalog.DefaultURL,
		CatalogTimeout:              10 * time.Second,
		IdentityProvider:            IdentityProviderGoogle,
		SessionTTL:                  24 * time.Hour,
		KafkaTopic:                  kafka.TopicOrderEvents,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres storage requires a DSN"))
		}
	case StorageDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis storage requires an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.RealtimeDriver {
	case RealtimeDriverMemory:
	case RealtimeDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis realtime driver requires an address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported realtime driver %q", c.RealtimeDriver))
	}

	switch c.IdentityProvider {
	case IdentityProviderDev:
	case IdentityProviderGoogle:
		if c.GoogleClientID == "" {
			errs = append(errs, errors.New("google identity provider requires a client id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported identity provider %q", c.IdentityProvider))
	}

	return errors.Join(errs...)
}

func (c Config) kafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
