// internal/common/database/migrations.go
// Schema for the JSONB document store

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection  TEXT        NOT NULL,
		id          TEXT        NOT NULL,
		data        JSONB       NOT NULL,
		acl         JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_collection_created ON documents (collection, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (collection, (data->>'userId'))`,
}

// RunMigrations applies the document store schema. Every statement is idempotent.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
