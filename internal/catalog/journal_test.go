package catalog_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
)

var operationHeader = []string{
	"id", "logical_id", "operation", "database_name", "step", "error", "resolved", "started_at", "finished_at",
}

func expectNoPending(mock sqlmock.Sqlmock, logicalID int64) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM lifecycle_journal")).
		WithArgs(logicalID).
		WillReturnRows(sqlmock.NewRows(operationHeader))
}

func TestBeginOperation(t *testing.T) {
	store, mock := newStore(t)
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	expectNoPending(mock, 7)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO lifecycle_journal")).
		WithArgs(sqlmock.AnyArg(), int64(7), "merge-staging", "main_3_7", "started").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(started))

	op, err := store.BeginOperation(context.Background(), 7, "merge-staging", "main_3_7")
	require.NoError(t, err)
	assert.Len(t, op.ID, 26)
	assert.Equal(t, catalog.StepStarted, op.Step)
	assert.Equal(t, started, op.StartedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginOperationBlockedByPending(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM lifecycle_journal")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(operationHeader).
			AddRow("01HQ0000000000000000000000", 7, "merge-staging", "main_3_7", "drop", "boom", false, time.Now(), nil))

	_, err := store.BeginOperation(context.Background(), 7, "drop-staging", "main_3_7")
	assert.ErrorIs(t, err, apperr.ErrNamingConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishBeforeDestructiveStepCloses(t *testing.T) {
	store, mock := newStore(t)
	op := &catalog.Operation{ID: "01HQ0000000000000000000000", Step: catalog.StepTerminate}

	mock.ExpectExec(regexp.QuoteMeta("SET step = $2, error = $3, finished_at = now()")).
		WithArgs(op.ID, "terminate", "in use").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Finish(context.Background(), op, errors.New("in use")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishAfterDestructiveStepStaysPending(t *testing.T) {
	store, mock := newStore(t)
	op := &catalog.Operation{ID: "01HQ0000000000000000000000"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE lifecycle_journal SET step = $2 WHERE id = $1")).
		WithArgs(op.ID, "rename").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("^" + regexp.QuoteMeta("UPDATE lifecycle_journal SET step = $2, error = $3 WHERE id = $1") + "$").
		WithArgs(op.ID, "rename", "rename failed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Advance(context.Background(), op, catalog.StepRename))
	require.NoError(t, store.Finish(context.Background(), op, errors.New("rename failed")))
	require.NotNil(t, op.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishSuccess(t *testing.T) {
	store, mock := newStore(t)
	op := &catalog.Operation{ID: "01HQ0000000000000000000000", Step: catalog.StepFinalize}

	mock.ExpectExec(regexp.QuoteMeta("finished_at = now()")).
		WithArgs(op.ID, "done", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Finish(context.Background(), op, nil))
	assert.Equal(t, catalog.StepDone, op.Step)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveOperation(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET resolved = true")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.ResolveOperation(context.Background(), "missing"), apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
