package structure

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
)

func (e *Engine) CreateTable(ctx context.Context, db *sql.DB, name string) error {
	if name == "" {
		return apperr.BadRequest("table name is required")
	}

	return e.run(ctx, db, "table", "create", func(tx *sql.Tx) error {
		exists, err := e.introspector.TableExists(ctx, tx, name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("table %s already exists", name)
		}

		var p plan
		p.add("CREATE TABLE %s ()", e.qualified(name))
		return e.execute(ctx, tx, &p)
	})
}

// RenameTable renames a table together with the sequences its columns own
// that are named after it, so <table>_<column>_seq keeps matching the table
// it belongs to. Sequences owned by other tables are never touched, even when
// their names share the prefix.
func (e *Engine) RenameTable(ctx context.Context, db *sql.DB, name, newName string) error {
	if newName == "" {
		return apperr.BadRequest("new table name is required")
	}

	return e.run(ctx, db, "table", "update", func(tx *sql.Tx) error {
		if err := e.introspector.RequireTable(ctx, tx, name); err != nil {
			return err
		}
		exists, err := e.introspector.TableExists(ctx, tx, newName)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("table %s already exists", newName)
		}

		prefix := name + "_"
		sequences, err := e.introspector.OwnedSequences(ctx, tx, name)
		if err != nil {
			return err
		}

		var p plan
		p.add("ALTER TABLE %s RENAME TO %s", e.qualified(name), ident(newName))
		for _, sequence := range sequences {
			if sequence == ConstraintSequence || !strings.HasPrefix(sequence, prefix) {
				continue
			}
			renamed := newName + "_" + strings.TrimPrefix(sequence, prefix)
			p.add("ALTER SEQUENCE %s RENAME TO %s", e.qualified(sequence), ident(renamed))
		}
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) DeleteTable(ctx context.Context, db *sql.DB, name string) error {
	return e.run(ctx, db, "table", "delete", func(tx *sql.Tx) error {
		if err := e.introspector.RequireTable(ctx, tx, name); err != nil {
			return err
		}

		var p plan
		p.add("DROP TABLE %s", e.qualified(name))
		return e.execute(ctx, tx, &p)
	})
}

// SetTableComment replaces the table comment; nil or empty removes it.
func (e *Engine) SetTableComment(ctx context.Context, db *sql.DB, name string, comment *string) error {
	return e.run(ctx, db, "table", "comment", func(tx *sql.Tx) error {
		if err := e.introspector.RequireTable(ctx, tx, name); err != nil {
			return err
		}

		var p plan
		p.add("COMMENT ON TABLE %s IS %s", e.qualified(name), sqltext.LiteralOrNull(emptyAsNil(comment)))
		return e.execute(ctx, tx, &p)
	})
}
