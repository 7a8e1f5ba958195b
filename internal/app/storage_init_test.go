package app

import (
	"context"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/blackstore/internal/metrics"
	"github.com/vladislavdragonenkov/blackstore/internal/realtime"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: StorageDriverMemory}, log.WithField("test", "memory"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory): %v", err)
	}
	if deps.users == nil || deps.orders == nil || deps.timeline == nil || deps.outbox == nil || deps.idempotency == nil {
		t.Fatalf("memory storage has nil repositories: %+v", deps)
	}
	if len(deps.probes) != 0 || len(deps.closers) != 0 {
		t.Fatal("memory storage needs no probes or closers")
	}
}

func TestInitRuntimeDependencies_Errors(t *testing.T) {
	logger := log.WithField("test", "errors")
	for _, driver := range []string{StorageDriverPostgres, "sqlite"} {
		if _, err := initRuntimeDependencies(context.Background(), Config{StorageDriver: driver}, logger); err == nil {
			t.Fatalf("driver %q: expected error", driver)
		}
	}
}

func TestInitRuntimeDependencies_Postgres(t *testing.T) {
	dsn := os.Getenv("BLACKSTORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set BLACKSTORE_TEST_POSTGRES_DSN to run postgres wiring test")
	}
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	logger := log.WithField("test", "postgres")
	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("initRuntimeDependencies(postgres): %v", err)
	}
	defer deps.close(logger)

	if len(deps.probes) != 1 || deps.probes[0].check(context.Background()) != nil {
		t.Fatal("postgres probe must be registered and healthy")
	}
}

func TestInitBroker_MemoryHasNoRunner(t *testing.T) {
	deps := &runtimeDependencies{}
	broker, run, err := initBroker(context.Background(), Config{RealtimeDriver: RealtimeDriverMemory}, deps,
		metrics.NewStoreMetrics(), log.WithField("test", "broker"))
	if err != nil {
		t.Fatalf("initBroker: %v", err)
	}
	if _, ok := broker.(*realtime.Hub); !ok || run != nil {
		t.Fatalf("memory driver must return a bare hub, got %T", broker)
	}
}
