package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
)

// UpsertPositions stores x/y per table name. Names of tables that no longer
// exist are accepted and kept.
func (s *Store) UpsertPositions(ctx context.Context, logicalID int64, positions []schema.Position) error {
	if len(positions) == 0 {
		return nil
	}

	query := `
		INSERT INTO table_positions (logical_id, table_name, x, y)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (logical_id, table_name) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			updated_at = now()`

	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, pos := range positions {
			if _, err := tx.ExecContext(ctx, query, logicalID, pos.Table, pos.X, pos.Y); err != nil {
				return fmt.Errorf("failed to store position of %s: %w", pos.Table, err)
			}
		}
		return nil
	})
}

// Positions returns the stored layout of a logical database keyed by table.
func (s *Store) Positions(ctx context.Context, logicalID int64) (map[string]schema.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, x, y FROM table_positions WHERE logical_id = $1", logicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]schema.Position)
	for rows.Next() {
		var pos schema.Position
		if err := rows.Scan(&pos.Table, &pos.X, &pos.Y); err != nil {
			return nil, fmt.Errorf("failed to read position: %w", err)
		}
		positions[pos.Table] = pos
	}
	return positions, rows.Err()
}
