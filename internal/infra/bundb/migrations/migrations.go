// Package migrations holds the bun migrations for the lesson quiz schema.
package migrations

import (
	"context"
	_ "embed"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

var (
	//go:embed postgres.sql
	postgresSchema string
	//go:embed sqlite.sql
	sqliteSchema string
)

var Migrations = migrate.NewMigrations()

// schemaFor picks the DDL flavour for db's dialect.
func schemaFor(db *bun.DB) string {
	if db.Dialect().Name() == dialect.SQLite {
		return sqliteSchema
	}
	return postgresSchema
}

// execScript runs a semicolon separated script one statement at a time.
func execScript(ctx context.Context, db *bun.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
