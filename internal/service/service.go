// Package service is the request facade in front of the structure engine and
// the instance lifecycle. It checks permissions, resolves a logical target to
// a physical database, scopes a connection to the request and emits audit
// events.
package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/instance"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

// Target names the database a structural request runs against.
type Target struct {
	LogicalID int64
	Instance  catalog.EntityType
	Staging   bool
}

// Instances is the lifecycle surface of instance.Manager.
type Instances interface {
	Resolve(ctx context.Context, logicalID int64, entity catalog.EntityType, staging bool) (string, string, error)
	CreateMain(ctx context.Context, logicalID int64, server, host string) (*catalog.PhysicalDatabase, error)
	Clone(ctx context.Context, logicalID int64, target catalog.EntityType) (*catalog.PhysicalDatabase, error)
	MergeIntoMain(ctx context.Context, logicalID int64, source catalog.EntityType) error
	DropInstance(ctx context.Context, logicalID int64, entity catalog.EntityType) error
	ListInstances(ctx context.Context, logicalID int64) ([]instance.Instance, error)
	Identity(ctx context.Context, logicalID int64, entity catalog.EntityType) (*instance.Identity, error)
	CreateStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) (string, error)
	MergeStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) error
	DropStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) error
}

// Records is the catalog surface for layout and the lifecycle journal.
type Records interface {
	UpsertPositions(ctx context.Context, logicalID int64, positions []schema.Position) error
	Positions(ctx context.Context, logicalID int64) (map[string]schema.Position, error)
	PendingOperations(ctx context.Context, logicalID int64) ([]*catalog.Operation, error)
	Operation(ctx context.Context, id string) (*catalog.Operation, error)
	ResolveOperation(ctx context.Context, id string) error
}

type Dependencies struct {
	Instances    Instances
	Records      Records
	Connector    database.Connector
	Engine       *structure.Engine
	Introspector *schema.Introspector
	Authorizer   Authorizer
	Audit        AuditSink
	Workers      int
	Logger       *logger.Logger
}

type Service struct {
	instances    Instances
	records      Records
	connector    database.Connector
	engine       *structure.Engine
	introspector *schema.Introspector
	authorizer   Authorizer
	audit        AuditSink
	workers      int
	logger       *logger.Logger

	pending sync.WaitGroup
}

func New(deps Dependencies) *Service {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	return &Service{
		instances:    deps.Instances,
		records:      deps.Records,
		connector:    deps.Connector,
		engine:       deps.Engine,
		introspector: deps.Introspector,
		authorizer:   deps.Authorizer,
		audit:        deps.Audit,
		workers:      deps.Workers,
		logger:       deps.Logger,
	}
}

// Flush waits for in-flight audit events.
func (s *Service) Flush() {
	s.pending.Wait()
}

// authorize asks the permission oracle and turns a denial into Forbidden.
func (s *Service) authorize(ctx context.Context, actor, action string, logicalID int64) error {
	allowed, err := s.authorizer.Allowed(ctx, actor, action, logicalID)
	if err != nil {
		return err
	}
	if !allowed {
		s.emit(AuditEvent{
			Actor:     actor,
			LogicalID: logicalID,
			Kind:      EventNotAuthorized,
			Detail:    "attempted " + action,
		})
		return apperr.Forbidden("%s is not allowed to %s logical database %d", actor, action, logicalID)
	}
	return nil
}

// withDatabase runs fn on a connection to target that lives for this call.
func (s *Service) withDatabase(ctx context.Context, target Target, fn func(db *sql.DB) error) error {
	server, name, err := s.instances.Resolve(ctx, target.LogicalID, target.Instance, target.Staging)
	if err != nil {
		return err
	}

	conn, err := s.connector.Open(ctx, server, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn.DB)
}

// mutate authorizes a structural change and runs it against target.
func (s *Service) mutate(ctx context.Context, actor string, target Target, fn func(db *sql.DB) error) error {
	if err := s.authorize(ctx, actor, config.ActionModify, target.LogicalID); err != nil {
		return err
	}
	return s.withDatabase(ctx, target, fn)
}
