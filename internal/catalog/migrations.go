package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kadirbelkuyu/dbforge/internal/database"
)

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const initialSchema = `
CREATE TABLE physical_databases (
	id BIGSERIAL PRIMARY KEY,
	logical_id BIGINT NOT NULL,
	entity_type TEXT NOT NULL CHECK (entity_type IN ('MAIN', 'TEST', 'MILESTONE')),
	server TEXT NOT NULL,
	token UUID NOT NULL UNIQUE,
	import_state TEXT NOT NULL DEFAULT 'none',
	size_bytes BIGINT,
	host TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (logical_id, entity_type)
);

CREATE TABLE table_positions (
	logical_id BIGINT NOT NULL,
	table_name TEXT NOT NULL,
	x DOUBLE PRECISION NOT NULL,
	y DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (logical_id, table_name)
);
`

const journalSchema = `
CREATE TABLE lifecycle_journal (
	id TEXT PRIMARY KEY,
	logical_id BIGINT NOT NULL,
	operation TEXT NOT NULL,
	database_name TEXT NOT NULL,
	step TEXT NOT NULL,
	error TEXT,
	resolved BOOLEAN NOT NULL DEFAULT false,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX idx_lifecycle_journal_pending ON lifecycle_journal (logical_id) WHERE finished_at IS NULL;
`

type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{version: 1, description: "Physical databases and table positions", sql: initialSchema},
	{version: 2, description: "Lifecycle journal", sql: journalSchema},
}

// Migrate brings the catalog schema up to date. Each migration runs in its own
// transaction together with its schema_migrations row.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				m.version, m.description)
			if err != nil {
				return fmt.Errorf("failed to record migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		s.logger.Infof("applied catalog migration %d: %s", m.version, m.description)
	}

	return nil
}
