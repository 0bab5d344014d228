package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// Both dialects accept the same statements here, partial index included.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `
ALTER TABLE attempts ADD COLUMN submission_key TEXT;
CREATE UNIQUE INDEX IF NOT EXISTS ux_attempts_submission_key ON attempts (submission_key) WHERE submission_key IS NOT NULL`)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `
DROP INDEX IF EXISTS ux_attempts_submission_key;
ALTER TABLE attempts DROP COLUMN submission_key`)
		},
	)
}
