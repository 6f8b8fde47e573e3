package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
)

// Step is the position of a lifecycle operation in its state machine.
type Step string

const (
	StepStarted   Step = "started"
	StepTerminate Step = "terminate"
	StepCreate    Step = "create"
	StepDrop      Step = "drop"
	StepRename    Step = "rename"
	StepFinalize  Step = "finalize"
	StepDone      Step = "done"
)

// destructive reports whether reaching s may have changed server state that
// cannot be rolled back, so a failure from here on needs an operator.
func (s Step) destructive() bool {
	switch s {
	case StepDrop, StepRename, StepFinalize:
		return true
	}
	return false
}

// Operation is one journal row.
type Operation struct {
	ID         string     `json:"id" yaml:"id"`
	LogicalID  int64      `json:"logical_id" yaml:"logical_id"`
	Kind       string     `json:"operation" yaml:"operation"`
	Database   string     `json:"database" yaml:"database"`
	Step       Step       `json:"step" yaml:"step"`
	Error      *string    `json:"error,omitempty" yaml:"error,omitempty"`
	Resolved   bool       `json:"resolved" yaml:"resolved"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

const operationColumns = `id, logical_id, operation, database_name, step, error, resolved, started_at, finished_at`

func scanOperation(row scanner) (*Operation, error) {
	var op Operation
	var step string
	var message sql.NullString
	var finished sql.NullTime
	err := row.Scan(&op.ID, &op.LogicalID, &op.Kind, &op.Database, &step, &message,
		&op.Resolved, &op.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	op.Step = Step(step)
	if message.Valid {
		op.Error = &message.String
	}
	if finished.Valid {
		op.FinishedAt = &finished.Time
	}
	return &op, nil
}

// BeginOperation opens a journal entry for a lifecycle operation. It fails
// with NamingConflict while an earlier operation on the same logical id is
// unfinished and unresolved.
func (s *Store) BeginOperation(ctx context.Context, logicalID int64, kind, databaseName string) (*Operation, error) {
	pending, err := s.PendingOperations(ctx, logicalID)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, apperr.NamingConflict("operation %s (%s) is in progress on logical database %d since step %s; resolve it first",
			pending[0].ID, pending[0].Kind, logicalID, pending[0].Step)
	}

	op := &Operation{
		ID:        ulid.Make().String(),
		LogicalID: logicalID,
		Kind:      kind,
		Database:  databaseName,
		Step:      StepStarted,
	}

	query := `
		INSERT INTO lifecycle_journal (id, logical_id, operation, database_name, step)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING started_at`
	err = s.db.QueryRowContext(ctx, query, op.ID, op.LogicalID, op.Kind, op.Database, string(op.Step)).Scan(&op.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal entry: %w", err)
	}
	return op, nil
}

// Advance records that op is about to perform step.
func (s *Store) Advance(ctx context.Context, op *Operation, step Step) error {
	_, err := s.db.ExecContext(ctx, "UPDATE lifecycle_journal SET step = $2 WHERE id = $1", op.ID, string(step))
	if err != nil {
		return fmt.Errorf("failed to advance journal entry %s to %s: %w", op.ID, step, err)
	}
	op.Step = step
	return nil
}

// Finish closes op. A failure before any destructive step closes the entry
// too; a failure after one leaves it pending so the logical id stays blocked
// until an operator resolves it.
func (s *Store) Finish(ctx context.Context, op *Operation, opErr error) error {
	var message *string
	if opErr != nil {
		text := opErr.Error()
		message = &text
	}

	step := op.Step
	query := "UPDATE lifecycle_journal SET step = $2, error = $3, finished_at = now() WHERE id = $1"
	switch {
	case opErr == nil:
		step = StepDone
	case op.Step.destructive():
		query = "UPDATE lifecycle_journal SET step = $2, error = $3 WHERE id = $1"
	}

	if _, err := s.db.ExecContext(ctx, query, op.ID, string(step), message); err != nil {
		return fmt.Errorf("failed to close journal entry %s: %w", op.ID, err)
	}
	op.Step = step
	op.Error = message
	return nil
}

// PendingOperations lists unfinished, unresolved operations. A zero logicalID
// lists them for every logical database.
func (s *Store) PendingOperations(ctx context.Context, logicalID int64) ([]*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM lifecycle_journal
		WHERE finished_at IS NULL AND NOT resolved AND ($1::bigint = 0 OR logical_id = $1)
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, logicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal entry: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *Store) Operation(ctx context.Context, id string) (*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM lifecycle_journal WHERE id = $1`
	op, err := scanOperation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("journal entry %s does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entry: %w", err)
	}
	return op, nil
}

// ResolveOperation marks a pending operation as handled by an operator,
// unblocking its logical id.
func (s *Store) ResolveOperation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE lifecycle_journal SET resolved = true, finished_at = COALESCE(finished_at, now()) WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to resolve journal entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("journal entry %s does not exist", id)
	}
	return nil
}
