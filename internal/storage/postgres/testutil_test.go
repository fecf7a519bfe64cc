package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"revenue-market/internal/storage"
	"revenue-market/internal/storage/migrations"
)

// setupTestDB starts a disposable PostgreSQL with the ledger schema applied.
// The container is terminated when the test ends.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, 0)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger, _ := test.NewNullLogger()
	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool, logger))
	return pool
}

// atomic runs fn in a unit of work and fails the test on error.
func atomic(t *testing.T, store *Store, fn func(tx storage.Tx) error) {
	t.Helper()
	require.NoError(t, store.Atomic(context.Background(), fn))
}
