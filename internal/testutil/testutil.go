// Package testutil provides test helpers for the identity store and the
// Redis-backed middleware.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-marketplace/internal/database"
	"github.com/iliyamo/farm-marketplace/internal/repository"
)

// SetupTestDB opens a fresh in-memory SQLite database, applies the schema
// and registers cleanup.  Every call returns an isolated database.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() {
		if cerr := db.Close(); cerr != nil {
			t.Logf("warning: failed to close test db: %v", cerr)
		}
	})
	require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite), "migrate")
	return db
}

// NewStore returns a Store over a fresh migrated database.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	return repository.NewStore(SetupTestDB(t))
}

// SetupRedis connects to REDIS_ADDR (default localhost:6379) and skips the
// test when no server answers.  The selected database is flushed on cleanup.
func SetupRedis(t testing.TB) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available:", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
