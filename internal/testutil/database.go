package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/printexchange/print-exchange-backend/internal/infrastructure/config"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database/migrations"
	"github.com/printexchange/print-exchange-backend/internal/testutil/containers"
)

// TestDB is a migrated PostgreSQL database running in a container
type TestDB struct {
	URL  string
	Pool *pgxpool.Pool

	container *containers.PostgresContainer
}

// NewTestDB starts a container and applies every migration. It skips the
// test under -short or when no container runtime is available.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := startContainer(ctx)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	tdb := &TestDB{URL: c.ConnectionString, container: c}
	t.Cleanup(func() {
		if tdb.Pool != nil {
			tdb.Pool.Close()
		}
		_ = c.Terminate(context.Background())
	})

	require.NoError(t, migrations.Apply(c.ConnectionString))

	cfg := config.Defaults().Database
	cfg.URL = c.ConnectionString
	cfg.MaxConns = 20
	tdb.Pool, err = database.NewPool(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	return tdb
}

// startContainer converts a panicking provider lookup into an error
func startContainer(ctx context.Context) (c *containers.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container provider: %v", r)
		}
	}()
	return containers.NewPostgresContainer(ctx)
}

// Truncate empties every engine table between tests
func (tdb *TestDB) Truncate(t testing.TB) {
	t.Helper()
	_, err := tdb.Pool.Exec(context.Background(),
		`TRUNCATE ratings, agreements, bids, printing_jobs, printer_profiles RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}
