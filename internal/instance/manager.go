// Package instance provisions, clones, promotes and drops the physical
// databases behind a logical database, including transient staging copies.
//
// Server-level statements such as DROP DATABASE cannot run in a transaction,
// so every multi-step operation is journaled step by step and serialized per
// logical id with a session advisory lock.
package instance

import (
	"context"

	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/metrics"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

// Catalog is the record and journal storage the manager depends on.
type Catalog interface {
	CreatePhysical(ctx context.Context, rec *catalog.PhysicalDatabase) error
	FindPhysical(ctx context.Context, logicalID int64, entity catalog.EntityType) (*catalog.PhysicalDatabase, error)
	ListPhysical(ctx context.Context, logicalID int64) ([]*catalog.PhysicalDatabase, error)
	DeletePhysical(ctx context.Context, id int64) error
	SetSize(ctx context.Context, id int64, size int64) error
	SetImportState(ctx context.Context, id int64, state string) error

	BeginOperation(ctx context.Context, logicalID int64, kind, databaseName string) (*catalog.Operation, error)
	Advance(ctx context.Context, op *catalog.Operation, step catalog.Step) error
	Finish(ctx context.Context, op *catalog.Operation, opErr error) error
}

type Options struct {
	// OwnerRole owns every database the manager creates.
	OwnerRole string
	// Schema receives the constraint naming sequence on provisioning.
	Schema string
}

type Manager struct {
	catalog   Catalog
	connector database.Connector
	opts      Options
	logger    *logger.Logger
	metrics   *metrics.Collector
}

func NewManager(catalog Catalog, connector database.Connector, opts Options, logger *logger.Logger, metrics *metrics.Collector) *Manager {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	return &Manager{
		catalog:   catalog,
		connector: connector,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Instance is a physical database together with its live server state.
type Instance struct {
	Record        *catalog.PhysicalDatabase `json:"record" yaml:"record"`
	ConsumedName  string                    `json:"consumed_name" yaml:"consumed_name"`
	StagingExists bool                      `json:"staging_exists" yaml:"staging_exists"`
}

// Identity is what an external role provisioner needs to grant access to an
// instance.
type Identity struct {
	Record       *catalog.PhysicalDatabase `json:"record" yaml:"record"`
	ConsumedName string                    `json:"consumed_name" yaml:"consumed_name"`
	Server       string                    `json:"server" yaml:"server"`
	Host         string                    `json:"host" yaml:"host"`
}
