package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
)

type EntityType string

const (
	EntityMain      EntityType = "MAIN"
	EntityTest      EntityType = "TEST"
	EntityMilestone EntityType = "MILESTONE"
)

// ParseEntityType accepts the instance names case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EntityMain, EntityTest, EntityMilestone:
		return t, nil
	}
	return "", apperr.BadRequest("unknown instance %q: expected main, test or milestone", s)
}

const (
	ImportNone    = "none"
	ImportRunning = "running"
	ImportDone    = "done"
	ImportFailed  = "failed"
)

// StagingSuffix is appended to a consumed name to form its staging copy.
const StagingSuffix = "_staging"

// PhysicalDatabase is one concrete database on a server.
type PhysicalDatabase struct {
	ID          int64      `json:"id" yaml:"id"`
	LogicalID   int64      `json:"logical_id" yaml:"logical_id"`
	EntityType  EntityType `json:"entity_type" yaml:"entity_type"`
	Server      string     `json:"server" yaml:"server"`
	Token       uuid.UUID  `json:"token" yaml:"token"`
	ImportState string     `json:"import_state" yaml:"import_state"`
	SizeBytes   *int64     `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Host        string     `json:"host" yaml:"host"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
}

// ConsumedName is the database name on the server. It is always derived from
// the record and never stored.
func (p PhysicalDatabase) ConsumedName() string {
	return strings.ToLower(fmt.Sprintf("%s_%d_%d", p.EntityType, p.ID, p.LogicalID))
}

func (p PhysicalDatabase) StagingName() string {
	return p.ConsumedName() + StagingSuffix
}

const physicalColumns = `id, logical_id, entity_type, server, token, import_state, size_bytes, host, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPhysical(row scanner) (*PhysicalDatabase, error) {
	var rec PhysicalDatabase
	var entity string
	var size sql.NullInt64
	err := row.Scan(&rec.ID, &rec.LogicalID, &entity, &rec.Server, &rec.Token,
		&rec.ImportState, &size, &rec.Host, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.EntityType = EntityType(entity)
	if size.Valid {
		rec.SizeBytes = &size.Int64
	}
	return &rec, nil
}

// CreatePhysical inserts rec, filling in its id, token and creation time.
// A second record of the same entity type for one logical id is a conflict.
func (s *Store) CreatePhysical(ctx context.Context, rec *PhysicalDatabase) error {
	if rec.Token == uuid.Nil {
		rec.Token = uuid.New()
	}
	if rec.ImportState == "" {
		rec.ImportState = ImportNone
	}

	query := `
		INSERT INTO physical_databases (logical_id, entity_type, server, token, import_state, host)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		rec.LogicalID, string(rec.EntityType), rec.Server, rec.Token, rec.ImportState, rec.Host,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.NamingConflict("logical database %d already has a %s instance", rec.LogicalID, rec.EntityType)
		}
		return fmt.Errorf("failed to store physical database: %w", err)
	}
	return nil
}

// FindPhysical returns the instance of the given type for a logical id.
func (s *Store) FindPhysical(ctx context.Context, logicalID int64, entity EntityType) (*PhysicalDatabase, error) {
	query := `SELECT ` + physicalColumns + ` FROM physical_databases WHERE logical_id = $1 AND entity_type = $2`

	rec, err := scanPhysical(s.db.QueryRowContext(ctx, query, logicalID, string(entity)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("logical database %d has no %s instance", logicalID, entity)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query physical database: %w", err)
	}
	return rec, nil
}

// ListPhysical returns every instance of a logical database, MAIN first.
func (s *Store) ListPhysical(ctx context.Context, logicalID int64) ([]*PhysicalDatabase, error) {
	query := `SELECT ` + physicalColumns + ` FROM physical_databases WHERE logical_id = $1
		ORDER BY CASE entity_type WHEN 'MAIN' THEN 0 WHEN 'TEST' THEN 1 ELSE 2 END, id`

	rows, err := s.db.QueryContext(ctx, query, logicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list physical databases: %w", err)
	}
	defer rows.Close()

	var records []*PhysicalDatabase
	for rows.Next() {
		rec, err := scanPhysical(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read physical database: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) DeletePhysical(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM physical_databases WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete physical database: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("physical database %d does not exist", id)
	}
	return nil
}

// SetImportState records how far the copy that fills a database has come.
func (s *Store) SetImportState(ctx context.Context, id int64, state string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE physical_databases SET import_state = $2 WHERE id = $1", id, state)
	if err != nil {
		return fmt.Errorf("failed to update import state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("physical database %d does not exist", id)
	}
	return nil
}

func (s *Store) SetSize(ctx context.Context, id int64, size int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE physical_databases SET size_bytes = $2 WHERE id = $1", id, size)
	if err != nil {
		return fmt.Errorf("failed to update database size: %w", err)
	}
	return nil
}
