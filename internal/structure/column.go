package structure

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
)

// CreateColumn adds a column to table. A column is nullable unless the
// request says otherwise.
func (e *Engine) CreateColumn(ctx context.Context, db *sql.DB, table string, req ColumnRequest) error {
	if !isSet(req.Name) {
		return apperr.BadRequest("column name is required")
	}
	if !isSet(req.Datatype) {
		return apperr.BadRequest("datatype is required")
	}
	typ, err := sqltext.ParseTypeName(schema.ToNative(*req.Datatype))
	if err != nil {
		return apperr.BadRequest("%v", err)
	}

	name := *req.Name
	autoIncrement := isTrue(req.AutoIncrement)
	// An auto-increment column is always NOT NULL.
	nullable := !autoIncrement && (req.Nullable == nil || *req.Nullable)

	if autoIncrement && req.Default != nil {
		return apperr.BadRequest("a column cannot have both a default value and auto-increment")
	}
	if autoIncrement && !schema.IsIntegerType(typ.Base()) {
		return apperr.BadRequest("auto-increment requires an integer datatype, got %s", typ)
	}
	if !nullable && !autoIncrement && req.Default == nil {
		return apperr.BadRequest("NOT NULL column must have a default")
	}

	return e.run(ctx, db, "column", "create", func(tx *sql.Tx) error {
		exists, err := e.columnExists(ctx, tx, table, name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("column %s already exists on table %s", name, table)
		}

		sequence := sequenceName(table, name)

		var p plan
		if autoIncrement {
			p.add("CREATE SEQUENCE %s", e.qualified(sequence))
		}

		var defaultExpr string
		switch {
		case req.Default != nil:
			defaultExpr = sqltext.QuoteLiteral(*req.Default)
		case autoIncrement:
			defaultExpr = e.nextvalDefault(sequence)
		default:
			defaultExpr = "NULL"
		}

		p.add("ALTER TABLE %s ADD COLUMN %s %s %s DEFAULT %s",
			e.qualified(table), ident(name), typ, nullability(nullable), defaultExpr)

		if autoIncrement {
			p.add("ALTER SEQUENCE %s OWNED BY %s.%s", e.qualified(sequence), e.qualified(table), ident(name))
		}
		if req.Comment != nil {
			p.add("COMMENT ON COLUMN %s.%s IS %s", e.qualified(table), ident(name), sqltext.LiteralOrNull(emptyAsNil(req.Comment)))
		}

		return e.execute(ctx, tx, &p)
	})
}

// UpdateColumn applies the requested changes in a fixed order: nullability,
// datatype, auto-increment, default, comment and finally the rename, so every
// earlier statement still addresses the column by its current name.
func (e *Engine) UpdateColumn(ctx context.Context, db *sql.DB, table, column string, req ColumnRequest) error {
	if req.isEmpty() {
		return apperr.BadRequest("nothing to change")
	}
	if req.Name != nil && *req.Name == "" {
		return apperr.BadRequest("column name cannot be empty")
	}
	if req.Default != nil && req.DropDefault {
		return apperr.BadRequest("cannot set and drop the default in one request")
	}
	enable := isTrue(req.AutoIncrement)
	disable := req.AutoIncrement != nil && !*req.AutoIncrement
	if enable && (req.Default != nil || req.DropDefault) {
		return apperr.BadRequest("a column cannot have both a default value and auto-increment")
	}

	var newType sqltext.TypeName
	if req.Datatype != nil {
		typ, err := sqltext.ParseTypeName(schema.ToNative(*req.Datatype))
		if err != nil {
			return apperr.BadRequest("%v", err)
		}
		newType = typ
	}

	return e.run(ctx, db, "column", "update", func(tx *sql.Tx) error {
		columns, err := e.introspector.Columns(ctx, tx, table)
		if err != nil {
			return err
		}
		current := findColumn(columns, column)
		if current == nil {
			return apperr.NotFound("column %s does not exist on table %s", column, table)
		}

		sequence, err := e.introspector.OwnedSequence(ctx, tx, table, column)
		if err != nil {
			return err
		}

		currentBase := baseType(current.DataType)

		if enable {
			if sequence != nil {
				return apperr.BadRequest("column %s is already auto-increment", column)
			}
			effective := currentBase
			if !newType.IsZero() {
				effective = newType.Base()
			}
			if !schema.IsIntegerType(effective) {
				return apperr.BadRequest("auto-increment requires an integer datatype, got %s", effective)
			}
		}
		if disable && sequence == nil {
			return apperr.BadRequest("column %s is not auto-increment", column)
		}
		if sequence != nil && !disable && (req.Default != nil || req.DropDefault) {
			return apperr.BadRequest("column %s is auto-increment; disable it to change the default", column)
		}

		if req.Name != nil && *req.Name != column && findColumn(columns, *req.Name) != nil {
			return apperr.NamingConflict("column %s already exists on table %s", *req.Name, table)
		}

		nullable := current.IsNullable
		if req.Nullable != nil {
			nullable = *req.Nullable
		}
		if !nullable && req.touchesDefault() && !hasDefaultAfter(current, sequence != nil, req) {
			return apperr.BadRequest("NOT NULL column must have a default")
		}

		target := e.qualified(table)
		col := ident(column)

		var p plan
		if req.Nullable != nil {
			if *req.Nullable {
				p.add("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", target, col)
			} else {
				p.add("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", target, col)
			}
		}

		// A default that is about to be replaced is dropped before the type
		// change, which would otherwise try to cast it to the new type.
		defaultDropped := false
		if !newType.IsZero() {
			if current.DefaultValue != nil && (disable || req.Default != nil || req.DropDefault) {
				p.add("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", target, col)
				defaultDropped = true
			}
			p.add("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING CAST(%s AS %s)",
				target, col, newType, castExpression(col, currentBase, newType.Base()), newType)
		}

		switch {
		case enable:
			seq := sequenceName(table, column)
			p.add("CREATE SEQUENCE %s", e.qualified(seq))
			p.add("ALTER SEQUENCE %s OWNED BY %s.%s", e.qualified(seq), target, col)
			p.bind(fmt.Sprintf("SELECT setval($1, COALESCE(MAX(%s), 0) + 1, false) FROM %s", col, target),
				e.qualified(seq))
			p.add("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", target, col, e.nextvalDefault(seq))
		case disable:
			if !defaultDropped {
				p.add("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", target, col)
			}
			p.add("DROP SEQUENCE %s", e.qualified(*sequence))
		}

		switch {
		case req.Default != nil:
			p.add("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", target, col, sqltext.QuoteLiteral(*req.Default))
		case req.DropDefault && !defaultDropped:
			p.add("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", target, col)
		}

		if req.Comment != nil {
			p.add("COMMENT ON COLUMN %s.%s IS %s", target, col, sqltext.LiteralOrNull(emptyAsNil(req.Comment)))
		}

		if req.Name != nil && *req.Name != column {
			p.add("ALTER TABLE %s RENAME COLUMN %s TO %s", target, col, ident(*req.Name))
		}

		if p.empty() {
			return apperr.BadRequest("nothing to change")
		}
		return e.execute(ctx, tx, &p)
	})
}

// DeleteColumn drops a column; an owned sequence goes with it.
func (e *Engine) DeleteColumn(ctx context.Context, db *sql.DB, table, column string) error {
	return e.run(ctx, db, "column", "delete", func(tx *sql.Tx) error {
		if _, err := e.introspector.Column(ctx, tx, table, column); err != nil {
			return err
		}

		var p plan
		p.add("ALTER TABLE %s DROP COLUMN %s", e.qualified(table), ident(column))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	columns, err := e.introspector.Columns(ctx, tx, table)
	if err != nil {
		return false, err
	}
	return findColumn(columns, column) != nil, nil
}

func findColumn(columns []schema.Column, name string) *schema.Column {
	for i := range columns {
		if columns[i].Name == name {
			return &columns[i]
		}
	}
	return nil
}

// hasDefaultAfter reports whether the column will carry a literal default or
// an auto-increment default once req is applied.
func hasDefaultAfter(current *schema.Column, autoIncrement bool, req ColumnRequest) bool {
	switch {
	case isTrue(req.AutoIncrement), req.Default != nil:
		return true
	case req.DropDefault:
		return false
	case req.AutoIncrement != nil:
		return false
	case autoIncrement:
		return true
	}
	value, _ := schema.NormalizeDefault(current.DefaultValue)
	return value != nil
}

// castExpression picks the USING expression for a type change. Integers and
// date/time values convert through epoch seconds rather than text.
func castExpression(column, from, to string) string {
	switch {
	case schema.IsIntegerType(from) && schema.IsDateTimeType(to):
		return fmt.Sprintf("to_timestamp(%s)", column)
	case schema.IsDateTimeType(from) && schema.IsIntegerType(to):
		return fmt.Sprintf("extract(epoch from %s)", column)
	default:
		return column
	}
}

func baseType(native string) string {
	typ, err := sqltext.ParseTypeName(native)
	if err != nil {
		// USER-DEFINED and similar catalog spellings are compared as-is.
		return strings.ToLower(native)
	}
	return typ.Base()
}

func nullability(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func emptyAsNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
