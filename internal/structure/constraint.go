package structure

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
)

type constraintKind int

const (
	constraintUnique constraintKind = iota
	constraintPrimary
	constraintForeign
)

func (r ConstraintRequest) kind() (constraintKind, error) {
	if r.Check != nil && *r.Check != "" {
		return 0, apperr.BadRequest("check constraints are not supported")
	}

	var kinds []constraintKind
	if isTrue(r.Unique) {
		kinds = append(kinds, constraintUnique)
	}
	if isTrue(r.Primary) {
		kinds = append(kinds, constraintPrimary)
	}
	if isTrue(r.Foreign) {
		kinds = append(kinds, constraintForeign)
	}

	if len(kinds) != 1 {
		return 0, apperr.BadRequest("exactly one of unique, primary or foreign must be set")
	}
	return kinds[0], nil
}

// CreateConstraint adds a constraint and returns its stored name: the
// requested name suffixed with the next value of the naming sequence, so a
// name is never reused even after the original constraint is dropped.
func (e *Engine) CreateConstraint(ctx context.Context, db *sql.DB, table string, req ConstraintRequest) (string, error) {
	if req.Name == "" {
		return "", apperr.BadRequest("constraint name is required")
	}

	kind, err := req.kind()
	if err != nil {
		return "", err
	}

	var body string
	switch kind {
	case constraintUnique, constraintPrimary:
		if len(req.Columns) == 0 {
			return "", apperr.BadRequest("at least one column is required")
		}
		keyword := "UNIQUE"
		if kind == constraintPrimary {
			keyword = "PRIMARY KEY"
		}
		body = fmt.Sprintf("%s (%s)", keyword, sqltext.JoinIdents(req.Columns))
	case constraintForeign:
		if len(req.Columns) != 1 {
			return "", apperr.BadRequest("a foreign key takes exactly one column")
		}
		if !isSet(req.ReferencedTable) {
			return "", apperr.BadRequest("referenced table is required")
		}
		if !isSet(req.ReferencedColumn) {
			return "", apperr.BadRequest("referenced column is required")
		}
		body = fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			ident(req.Columns[0]), e.qualified(*req.ReferencedTable), ident(*req.ReferencedColumn))
	}

	var stored string
	err = e.run(ctx, db, "constraint", "create", func(tx *sql.Tx) error {
		if err := e.introspector.RequireTable(ctx, tx, table); err != nil {
			return err
		}

		suffix, err := e.nextConstraintSuffix(ctx, tx)
		if err != nil {
			return err
		}
		stored = fmt.Sprintf("%s_%d", req.Name, suffix)

		exists, err := e.introspector.ConstraintExists(ctx, tx, table, stored)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("constraint %s already exists on table %s", stored, table)
		}

		var p plan
		p.add("ALTER TABLE %s ADD CONSTRAINT %s %s", e.qualified(table), ident(stored), body)
		return e.execute(ctx, tx, &p)
	})
	if err != nil {
		return "", err
	}
	return stored, nil
}

// RenameConstraint renames an existing constraint verbatim.
func (e *Engine) RenameConstraint(ctx context.Context, db *sql.DB, table, name, newName string) error {
	if newName == "" {
		return apperr.BadRequest("new constraint name is required")
	}

	return e.run(ctx, db, "constraint", "update", func(tx *sql.Tx) error {
		if err := e.requireConstraint(ctx, tx, table, name); err != nil {
			return err
		}

		exists, err := e.introspector.ConstraintExists(ctx, tx, table, newName)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("constraint %s already exists on table %s", newName, table)
		}

		var p plan
		p.add("ALTER TABLE %s RENAME CONSTRAINT %s TO %s", e.qualified(table), ident(name), ident(newName))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) DeleteConstraint(ctx context.Context, db *sql.DB, table, name string) error {
	return e.run(ctx, db, "constraint", "delete", func(tx *sql.Tx) error {
		if err := e.requireConstraint(ctx, tx, table, name); err != nil {
			return err
		}

		var p plan
		p.add("ALTER TABLE %s DROP CONSTRAINT %s", e.qualified(table), ident(name))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) requireConstraint(ctx context.Context, tx *sql.Tx, table, name string) error {
	if err := e.introspector.RequireTable(ctx, tx, table); err != nil {
		return err
	}
	exists, err := e.introspector.ConstraintExists(ctx, tx, table, name)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("constraint %s does not exist on table %s", name, table)
	}
	return nil
}

// nextConstraintSuffix draws from the naming sequence, creating it first for
// databases provisioned before the sequence existed.
func (e *Engine) nextConstraintSuffix(ctx context.Context, tx *sql.Tx) (int64, error) {
	var p plan
	p.add("CREATE SEQUENCE IF NOT EXISTS %s", e.qualified(ConstraintSequence))
	if err := e.execute(ctx, tx, &p); err != nil {
		return 0, err
	}

	var suffix int64
	err := tx.QueryRowContext(ctx, "SELECT nextval($1)", e.qualified(ConstraintSequence)).Scan(&suffix)
	if err != nil {
		return 0, fmt.Errorf("failed to draw constraint name suffix: %w", err)
	}
	return suffix, nil
}
