package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

const (
	tableExistsQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
			AND table_type = 'BASE TABLE'
		)`

	tableNamesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	columnsQuery = `
		SELECT
			column_name,
			data_type,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			column_default,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	foreignKeysQuery = `
		SELECT
			con.conname,
			a.attname,
			rt.relname,
			ra.attname
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, refnum) ON true
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
		WHERE con.contype = 'f'
		AND n.nspname = $1 AND t.relname = $2
		ORDER BY con.conname`

	indexesQuery = `
		SELECT
			ic.relname,
			array_agg(a.attname ORDER BY k.ord) AS columns,
			ix.indisunique,
			ix.indisprimary
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND t.relname = $2
		GROUP BY ic.relname, ix.indisunique, ix.indisprimary
		ORDER BY ic.relname`

	tableCommentQuery = `
		SELECT obj_description(c.oid, 'pg_class')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`

	columnCommentsQuery = `
		SELECT a.attname, col_description(c.oid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
		AND a.attnum > 0 AND NOT a.attisdropped
		AND col_description(c.oid, a.attnum) IS NOT NULL`

	ownedSequenceQuery = `
		SELECT s.relname
		FROM pg_depend d
		JOIN pg_class s ON s.oid = d.objid AND s.relkind = 'S'
		JOIN pg_class t ON t.oid = d.refobjid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = d.refobjsubid
		WHERE d.classid = 'pg_class'::regclass
		AND d.refclassid = 'pg_class'::regclass
		AND d.deptype IN ('a', 'i')
		AND n.nspname = $1 AND t.relname = $2 AND a.attname = $3`

	constraintExistsQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_constraint con
			JOIN pg_class c ON c.oid = con.conrelid
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = $1 AND c.relname = $2 AND con.conname = $3
		)`

	indexExistsQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_index ix
			JOIN pg_class ic ON ic.oid = ix.indexrelid
			JOIN pg_namespace n ON n.oid = ic.relnamespace
			WHERE n.nspname = $1 AND ic.relname = $2
		)`

	tableSequencesQuery = `
		SELECT s.relname
		FROM pg_depend d
		JOIN pg_class s ON s.oid = d.objid AND s.relkind = 'S'
		JOIN pg_namespace sn ON sn.oid = s.relnamespace
		JOIN pg_class t ON t.oid = d.refobjid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE d.classid = 'pg_class'::regclass
		AND d.refclassid = 'pg_class'::regclass
		AND d.deptype IN ('a', 'i')
		AND n.nspname = $1 AND t.relname = $2 AND sn.nspname = $1
		ORDER BY s.relname`
)

// Introspector reads table structure from the system catalogs of one schema.
// Every method accepts the Queryer to run against so callers can introspect
// inside their own transaction.
type Introspector struct {
	schema string
	logger *logger.Logger
}

func NewIntrospector(schema string, logger *logger.Logger) *Introspector {
	if schema == "" {
		schema = "public"
	}
	return &Introspector{
		schema: schema,
		logger: logger,
	}
}

// Schema returns the introspected schema name.
func (i *Introspector) Schema() string {
	return i.schema
}

func (i *Introspector) TableExists(ctx context.Context, q database.Queryer, table string) (bool, error) {
	return i.exists(ctx, q, "table", tableExistsQuery, i.schema, table)
}

func (i *Introspector) ConstraintExists(ctx context.Context, q database.Queryer, table, name string) (bool, error) {
	return i.exists(ctx, q, "constraint", constraintExistsQuery, i.schema, table, name)
}

func (i *Introspector) IndexExists(ctx context.Context, q database.Queryer, name string) (bool, error) {
	return i.exists(ctx, q, "index", indexExistsQuery, i.schema, name)
}

func (i *Introspector) exists(ctx context.Context, q database.Queryer, object, query string, args ...any) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", object, err)
	}
	return exists, nil
}

// RequireTable fails with NotFound when the table does not exist.
func (i *Introspector) RequireTable(ctx context.Context, q database.Queryer, table string) error {
	exists, err := i.TableExists(ctx, q, table)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("table %s does not exist", table)
	}
	return nil
}

func (i *Introspector) TableNames(ctx context.Context, q database.Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, tableNamesQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "table names", 1); err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to read table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Columns returns the table's columns in ordinal order.
func (i *Introspector) Columns(ctx context.Context, q database.Queryer, table string) ([]Column, error) {
	if err := i.RequireTable(ctx, q, table); err != nil {
		return nil, err
	}
	return i.columns(ctx, q, table)
}

func (i *Introspector) columns(ctx context.Context, q database.Queryer, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, columnsQuery, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "column metadata", 8); err != nil {
		return nil, err
	}

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable string
		var defaultValue sql.NullString
		var maxLength, precision, scale sql.NullInt64

		err := rows.Scan(
			&col.Name,
			&col.DataType,
			&maxLength,
			&precision,
			&scale,
			&defaultValue,
			&isNullable,
			&col.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to read column metadata: %w", err)
		}

		col.IsNullable = isNullable == "YES"
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		col.MaxLength = intPtr(maxLength)
		col.NumericPrecision = intPtr(precision)
		col.NumericScale = intPtr(scale)

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// Column returns a single column, failing with NotFound when either the table
// or the column is missing.
func (i *Introspector) Column(ctx context.Context, q database.Queryer, table, name string) (*Column, error) {
	columns, err := i.Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	for idx := range columns {
		if columns[idx].Name == name {
			return &columns[idx], nil
		}
	}
	return nil, apperr.NotFound("column %s does not exist on table %s", name, table)
}

func (i *Introspector) ForeignKeys(ctx context.Context, q database.Queryer, table string) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, foreignKeysQuery, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign key metadata: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "foreign key metadata", 4); err != nil {
		return nil, err
	}

	var keys []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.ColumnName, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("failed to read foreign key metadata: %w", err)
		}
		keys = append(keys, fk)
	}

	return keys, rows.Err()
}

// Indexes lists the table's indexes with their columns in definition order.
func (i *Introspector) Indexes(ctx context.Context, q database.Queryer, table string) ([]Index, error) {
	rows, err := q.QueryContext(ctx, indexesQuery, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query index metadata: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "index metadata", 4); err != nil {
		return nil, err
	}

	var indexes []Index
	for rows.Next() {
		var idx Index
		var columns pq.StringArray
		if err := rows.Scan(&idx.Name, &columns, &idx.IsUnique, &idx.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to read index metadata: %w", err)
		}
		idx.Columns = []string(columns)
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}

func (i *Introspector) Comments(ctx context.Context, q database.Queryer, table string) (Comments, error) {
	comments := Comments{Columns: map[string]string{}}

	var tableComment sql.NullString
	err := q.QueryRowContext(ctx, tableCommentQuery, i.schema, table).Scan(&tableComment)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return comments, fmt.Errorf("failed to query table comment: %w", err)
	}
	if tableComment.Valid {
		comments.Table = &tableComment.String
	}

	rows, err := q.QueryContext(ctx, columnCommentsQuery, i.schema, table)
	if err != nil {
		return comments, fmt.Errorf("failed to query column comments: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "column comments", 2); err != nil {
		return comments, err
	}

	for rows.Next() {
		var column, comment string
		if err := rows.Scan(&column, &comment); err != nil {
			return comments, fmt.Errorf("failed to read column comment: %w", err)
		}
		comments.Columns[column] = comment
	}

	return comments, rows.Err()
}

// OwnedSequence returns the name of the sequence owned by table.column, or
// nil when the column owns none.
func (i *Introspector) OwnedSequence(ctx context.Context, q database.Queryer, table, column string) (*string, error) {
	var sequence string
	err := q.QueryRowContext(ctx, ownedSequenceQuery, i.schema, table, column).Scan(&sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up owned sequence: %w", err)
	}
	return &sequence, nil
}

// OwnedSequences lists the sequences owned by columns of table. Sequences
// that merely share the table's name prefix are not included.
func (i *Introspector) OwnedSequences(ctx context.Context, q database.Queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, tableSequencesQuery, i.schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequences: %w", err)
	}
	defer rows.Close()

	if err := expectShape(rows, "sequences", 1); err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to read sequence name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func expectShape(rows *sql.Rows, what string, want int) error {
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read %s result shape: %w", what, err)
	}
	if len(columns) != want {
		return apperr.Internal("%s query returned %d columns, expected %d", what, len(columns), want)
	}
	return nil
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}
