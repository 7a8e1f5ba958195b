package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// openIntegrationStore подключается к BLACKSTORE_TEST_POSTGRES_DSN или, при
// BLACKSTORE_TESTCONTAINERS=1, поднимает контейнер postgres. Иначе тест пропускается.
func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	dsn := strings.TrimSpace(os.Getenv("BLACKSTORE_TEST_POSTGRES_DSN"))
	if dsn == "" && os.Getenv("BLACKSTORE_TESTCONTAINERS") == "1" {
		dsn = startPostgresContainer(t)
	}
	if dsn == "" {
		t.Skip("set BLACKSTORE_TEST_POSTGRES_DSN or BLACKSTORE_TESTCONTAINERS=1 to run postgres tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(ctx))
	_, err = store.DB().ExecContext(ctx, `
		TRUNCATE TABLE users, orders, timeline_events, outbox_messages, idempotency_keys
		RESTART IDENTITY
	`)
	require.NoError(t, err)
	return store
}

func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("blackstore"),
		tcpostgres.WithUsername("blackstore"),
		tcpostgres.WithPassword("blackstore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}
