package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, schemaFor(db))
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `
DROP TABLE IF EXISTS wallet_transactions;
DROP TABLE IF EXISTS attempts;
DROP TABLE IF EXISTS quiz_sessions;
DROP TABLE IF EXISTS questions;
DROP TABLE IF EXISTS quizzes;
DROP TABLE IF EXISTS video_assets;
DROP TABLE IF EXISTS contents;
DROP TABLE IF EXISTS users`)
		},
	)
}
