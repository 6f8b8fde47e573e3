package structure_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

var columnHeader = []string{
	"column_name", "data_type", "character_maximum_length", "numeric_precision",
	"numeric_scale", "column_default", "is_nullable", "ordinal_position",
}

type harness struct {
	t      *testing.T
	db     *sql.DB
	mock   sqlmock.Sqlmock
	engine *structure.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	introspector := schema.NewIntrospector("public", logger.Discard())
	return &harness{
		t:      t,
		db:     db,
		mock:   mock,
		engine: structure.NewEngine(introspector, logger.Discard(), nil),
	}
}

func (h *harness) expectTable(name string, exists bool) {
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("public", name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

// column builds an information_schema.columns row.
func column(name, dataType string, def any, nullable bool, position int) []driver.Value {
	isNullable := "NO"
	if nullable {
		isNullable = "YES"
	}
	return []driver.Value{name, dataType, nil, nil, nil, def, isNullable, position}
}

func (h *harness) expectColumns(table string, columns ...[]driver.Value) {
	h.expectTable(table, true)
	rows := sqlmock.NewRows(columnHeader)
	for _, col := range columns {
		rows.AddRow(col...)
	}
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", table).
		WillReturnRows(rows)
}

func (h *harness) expectOwnedSequence(table, column, sequence string) {
	rows := sqlmock.NewRows([]string{"relname"})
	if sequence != "" {
		rows.AddRow(sequence)
	}
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM pg_depend d")).
		WithArgs("public", table, column).
		WillReturnRows(rows)
}

func (h *harness) expectConstraint(table, name string, exists bool) {
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM pg_constraint con")).
		WithArgs("public", table, name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func (h *harness) expectIndex(name string, exists bool) {
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM pg_index ix")).
		WithArgs("public", name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func (h *harness) expectExec(statement string) {
	h.mock.ExpectExec("^" + regexp.QuoteMeta(statement) + "$").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (h *harness) expectBoundExec(statement string, args ...driver.Value) {
	h.mock.ExpectExec("^" + regexp.QuoteMeta(statement) + "$").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (h *harness) verify() {
	h.t.Helper()
	require.NoError(h.t, h.mock.ExpectationsWereMet())
}

func requireKind(t *testing.T, err error, kind *apperr.Error) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errors.Is(err, kind), "expected %s, got %v", kind.Kind, err)
}

func ptr[T any](v T) *T {
	return &v
}
