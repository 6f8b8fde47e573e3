package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/instance"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/service"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

type fakeInstances struct {
	calls []string
}

func (f *fakeInstances) Resolve(_ context.Context, logicalID int64, entity catalog.EntityType, staging bool) (string, string, error) {
	f.calls = append(f.calls, "resolve")
	if logicalID != 7 || entity != catalog.EntityMain {
		return "", "", apperr.NotFound("no %s instance", entity)
	}
	name := "main_1_7"
	if staging {
		name += catalog.StagingSuffix
	}
	return "default", name, nil
}

func (f *fakeInstances) CreateMain(_ context.Context, logicalID int64, server, host string) (*catalog.PhysicalDatabase, error) {
	f.calls = append(f.calls, "create-main")
	return &catalog.PhysicalDatabase{ID: 1, LogicalID: logicalID, EntityType: catalog.EntityMain, Server: server, Host: host}, nil
}

func (f *fakeInstances) Clone(_ context.Context, logicalID int64, target catalog.EntityType) (*catalog.PhysicalDatabase, error) {
	f.calls = append(f.calls, "clone")
	return &catalog.PhysicalDatabase{ID: 2, LogicalID: logicalID, EntityType: target, Server: "default"}, nil
}

func (f *fakeInstances) MergeIntoMain(context.Context, int64, catalog.EntityType) error {
	f.calls = append(f.calls, "merge-into-main")
	return nil
}

func (f *fakeInstances) DropInstance(context.Context, int64, catalog.EntityType) error {
	f.calls = append(f.calls, "drop-instance")
	return nil
}

func (f *fakeInstances) ListInstances(context.Context, int64) ([]instance.Instance, error) {
	f.calls = append(f.calls, "list")
	return nil, nil
}

func (f *fakeInstances) Identity(_ context.Context, logicalID int64, entity catalog.EntityType) (*instance.Identity, error) {
	f.calls = append(f.calls, "identity")
	rec := &catalog.PhysicalDatabase{ID: 1, LogicalID: logicalID, EntityType: entity, Server: "default"}
	return &instance.Identity{Record: rec, ConsumedName: rec.ConsumedName(), Server: rec.Server}, nil
}

func (f *fakeInstances) CreateStaging(_ context.Context, _ int64, _ catalog.EntityType) (string, error) {
	f.calls = append(f.calls, "create-staging")
	return "main_1_7_staging", nil
}

func (f *fakeInstances) MergeStaging(context.Context, int64, catalog.EntityType) error {
	f.calls = append(f.calls, "merge-staging")
	return nil
}

func (f *fakeInstances) DropStaging(context.Context, int64, catalog.EntityType) error {
	f.calls = append(f.calls, "drop-staging")
	return nil
}

type fakeRecords struct {
	positions map[string]schema.Position
	ops       map[string]*catalog.Operation
	resolved  []string
}

func (f *fakeRecords) UpsertPositions(_ context.Context, _ int64, positions []schema.Position) error {
	for _, pos := range positions {
		f.positions[pos.Table] = pos
	}
	return nil
}

func (f *fakeRecords) Positions(context.Context, int64) (map[string]schema.Position, error) {
	return f.positions, nil
}

func (f *fakeRecords) PendingOperations(context.Context, int64) ([]*catalog.Operation, error) {
	var ops []*catalog.Operation
	for _, op := range f.ops {
		ops = append(ops, op)
	}
	return ops, nil
}

func (f *fakeRecords) Operation(_ context.Context, id string) (*catalog.Operation, error) {
	op, ok := f.ops[id]
	if !ok {
		return nil, apperr.NotFound("journal entry %s does not exist", id)
	}
	return op, nil
}

func (f *fakeRecords) ResolveOperation(_ context.Context, id string) error {
	f.resolved = append(f.resolved, id)
	return nil
}

// allowList permits every action of the listed actors.
type allowList map[string]bool

func (a allowList) Allowed(_ context.Context, actor, _ string, _ int64) (bool, error) {
	return a[actor], nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []service.AuditEvent
	fail   bool
}

func (r *recordingSink) Record(_ context.Context, event service.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.fail {
		return fmt.Errorf("audit backend unavailable")
	}
	return nil
}

// queueConnector hands out prepared sqlmock databases in order, one per
// request.
type queueConnector struct {
	dbs    []*sql.DB
	opened []string
}

func (q *queueConnector) Open(_ context.Context, server, name string) (*database.Connection, error) {
	if len(q.dbs) == 0 {
		return nil, fmt.Errorf("unexpected connection to %s", name)
	}
	db := q.dbs[0]
	q.dbs = q.dbs[1:]
	q.opened = append(q.opened, name)
	return database.Wrap(db, server, name), nil
}

func (q *queueConnector) Admin(_ context.Context, server string) (*database.Connection, error) {
	return nil, fmt.Errorf("unexpected admin connection to %s", server)
}

type fixture struct {
	instances *fakeInstances
	records   *fakeRecords
	connector *queueConnector
	audit     *recordingSink
	service   *service.Service
	mocks     []sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Discard()
	introspector := schema.NewIntrospector("public", log)

	f := &fixture{
		instances: &fakeInstances{},
		records: &fakeRecords{
			positions: map[string]schema.Position{},
			ops:       map[string]*catalog.Operation{},
		},
		connector: &queueConnector{},
		audit:     &recordingSink{},
	}
	f.service = service.New(service.Dependencies{
		Instances:    f.instances,
		Records:      f.records,
		Connector:    f.connector,
		Engine:       structure.NewEngine(introspector, log, nil),
		Introspector: introspector,
		Authorizer:   allowList{"alice": true},
		Audit:        f.audit,
		Workers:      2,
		Logger:       log,
	})
	return f
}

// connection prepares the database handed to the next request.
func (f *fixture) connection(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	f.connector.dbs = append(f.connector.dbs, db)
	f.mocks = append(f.mocks, mock)
	return mock
}

func (f *fixture) verify(t *testing.T) {
	t.Helper()
	for _, mock := range f.mocks {
		require.NoError(t, mock.ExpectationsWereMet())
	}
}
