// Package bundbtest opens throwaway in-memory sqlite stores for tests.
package bundbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"lesson-quiz-service/internal/fixtures"
	"lesson-quiz-service/internal/infra/bundb"
)

// Open returns a migrated, empty database private to the test.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := bundb.Open(bundb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := bundb.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Seeded returns a store loaded with the demo dataset.
func Seeded(t testing.TB) *bundb.Store {
	t.Helper()
	store := bundb.NewStore(Open(t))
	if _, err := store.Seed(context.Background(), fixtures.Demo()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}
