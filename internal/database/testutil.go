package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDatabaseURLEnv names the variable holding the integration test database.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

var shared struct {
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// TestPool returns a migrated pool shared by every test in the package.
// Skips the test if TEST_DATABASE_URL is not set.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(TestDatabaseURLEnv)
	if url == "" {
		t.Skip(TestDatabaseURLEnv + " not set, skipping integration test")
	}

	shared.once.Do(func() {
		ctx := context.Background()
		if shared.pool, shared.err = Connect(ctx, url); shared.err != nil {
			return
		}
		shared.err = RunMigrations(ctx, shared.pool)
	})
	if shared.err != nil {
		t.Fatalf("failed to set up test database: %v", shared.err)
	}
	return shared.pool
}

// TestTx begins a transaction on the shared pool and rolls it back when the
// test ends, so tests can run in parallel without cleaning tables.
// Repositories that begin their own transactions get savepoints inside it.
//
//	tx := database.TestTx(t)
//	repo := repository.NewSnapshotRepository(tx)
func TestTx(t *testing.T) pgx.Tx {
	t.Helper()

	ctx := context.Background()
	tx, err := TestPool(t).Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})
	return tx
}
