package instance_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/instance"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

type fakeCatalog struct {
	mu       sync.Mutex
	records  map[int64]*catalog.PhysicalDatabase
	nextID   int64
	steps    []catalog.Step
	finished []error
	imports  []string
	blocked  bool
}

func newFakeCatalog(records ...*catalog.PhysicalDatabase) *fakeCatalog {
	c := &fakeCatalog{records: map[int64]*catalog.PhysicalDatabase{}}
	for _, rec := range records {
		c.records[rec.ID] = rec
		if rec.ID >= c.nextID {
			c.nextID = rec.ID
		}
	}
	return c
}

func (c *fakeCatalog) CreatePhysical(_ context.Context, rec *catalog.PhysicalDatabase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.records {
		if existing.LogicalID == rec.LogicalID && existing.EntityType == rec.EntityType {
			return apperr.NamingConflict("duplicate %s", rec.EntityType)
		}
	}
	c.nextID++
	rec.ID = c.nextID
	rec.CreatedAt = time.Now()
	c.records[rec.ID] = rec
	return nil
}

func (c *fakeCatalog) FindPhysical(_ context.Context, logicalID int64, entity catalog.EntityType) (*catalog.PhysicalDatabase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		if rec.LogicalID == logicalID && rec.EntityType == entity {
			return rec, nil
		}
	}
	return nil, apperr.NotFound("no %s", entity)
}

func (c *fakeCatalog) ListPhysical(_ context.Context, logicalID int64) ([]*catalog.PhysicalDatabase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var records []*catalog.PhysicalDatabase
	for id := int64(1); id <= c.nextID; id++ {
		if rec, ok := c.records[id]; ok && rec.LogicalID == logicalID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *fakeCatalog) DeletePhysical(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; !ok {
		return apperr.NotFound("no record %d", id)
	}
	delete(c.records, id)
	return nil
}

func (c *fakeCatalog) SetSize(_ context.Context, id int64, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id].SizeBytes = &size
	return nil
}

func (c *fakeCatalog) SetImportState(_ context.Context, id int64, state string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imports = append(c.imports, state)
	if rec, ok := c.records[id]; ok {
		rec.ImportState = state
	}
	return nil
}

func (c *fakeCatalog) BeginOperation(_ context.Context, logicalID int64, kind, name string) (*catalog.Operation, error) {
	if c.blocked {
		return nil, apperr.NamingConflict("operation in progress")
	}
	return &catalog.Operation{ID: "op", LogicalID: logicalID, Kind: kind, Database: name, Step: catalog.StepStarted}, nil
}

func (c *fakeCatalog) Advance(_ context.Context, op *catalog.Operation, step catalog.Step) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step)
	op.Step = step
	return nil
}

func (c *fakeCatalog) Finish(_ context.Context, _ *catalog.Operation, opErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, opErr)
	return nil
}

// fakeConnector hands out one sqlmock database per server or database name.
type fakeConnector struct {
	admin  map[string]*sql.DB
	tenant map[string]*sql.DB
}

func (c *fakeConnector) Open(_ context.Context, server, name string) (*database.Connection, error) {
	db, ok := c.tenant[name]
	if !ok {
		return nil, fmt.Errorf("unexpected connection to %s", name)
	}
	return database.Wrap(db, server, name), nil
}

func (c *fakeConnector) Admin(_ context.Context, server string) (*database.Connection, error) {
	db, ok := c.admin[server]
	if !ok {
		return nil, fmt.Errorf("unexpected admin connection to %s", server)
	}
	return database.Wrap(db, server, "postgres"), nil
}

type fixture struct {
	catalog   *fakeCatalog
	connector *fakeConnector
	admin     sqlmock.Sqlmock
	manager   *instance.Manager
}

func newFixture(t *testing.T, records ...*catalog.PhysicalDatabase) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	f := &fixture{
		catalog: newFakeCatalog(records...),
		connector: &fakeConnector{
			admin:  map[string]*sql.DB{"default": db},
			tenant: map[string]*sql.DB{},
		},
		admin: mock,
	}
	f.manager = instance.NewManager(f.catalog, f.connector,
		instance.Options{OwnerRole: "dbforge_owner"}, logger.Discard(), nil)
	return f
}

func (f *fixture) tenant(t *testing.T, name string) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	f.connector.tenant[name] = db
	return mock
}

func (f *fixture) expectLock(logicalID int64, acquired bool) {
	f.admin.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(logicalID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(acquired))
}

func (f *fixture) expectUnlock(logicalID int64) {
	f.admin.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(logicalID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.admin.ExpectClose()
}

func (f *fixture) expectExists(name string, exists bool) {
	f.admin.ExpectQuery(regexp.QuoteMeta("FROM pg_database WHERE datname = $1")).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func (f *fixture) expectTerminate(names ...string) {
	for _, name := range names {
		f.admin.ExpectExec(regexp.QuoteMeta("SELECT pg_terminate_backend(pid) FROM pg_stat_activity")).
			WithArgs(name).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func (f *fixture) expectExec(statement string) *sqlmock.ExpectedExec {
	return f.admin.ExpectExec("^" + regexp.QuoteMeta(statement) + "$").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func (f *fixture) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, f.admin.ExpectationsWereMet())
}

func record(id, logicalID int64, entity catalog.EntityType) *catalog.PhysicalDatabase {
	return &catalog.PhysicalDatabase{ID: id, LogicalID: logicalID, EntityType: entity, Server: "default"}
}
