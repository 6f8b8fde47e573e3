package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

// CreateMain provisions the MAIN database of a new logical database on server.
func (m *Manager) CreateMain(ctx context.Context, logicalID int64, server, host string) (*catalog.PhysicalDatabase, error) {
	rec := &catalog.PhysicalDatabase{
		LogicalID:  logicalID,
		EntityType:  catalog.EntityMain,
		Server:      server,
		Host:        host,
		ImportState: catalog.ImportRunning,
	}
	if err := m.catalog.CreatePhysical(ctx, rec); err != nil {
		return nil, err
	}
	name := rec.ConsumedName()

	created := false
	err := m.lifecycle(ctx, server, logicalID, "create-main", name, func(s *session) error {
		err := s.step(ctx, catalog.StepCreate, func() error {
			return s.exec(ctx, "CREATE DATABASE %s OWNER %s", sqltext.QuoteIdent(name), sqltext.QuoteIdent(m.opts.OwnerRole))
		})
		if err != nil {
			return err
		}
		created = true

		return s.step(ctx, catalog.StepFinalize, func() error {
			return m.provision(ctx, server, name)
		})
	})
	m.imported(ctx, rec, err)
	if err != nil {
		if !created {
			m.forget(ctx, rec)
		}
		return nil, err
	}
	return rec, nil
}

// provision creates the per-database objects the structure engine relies on.
func (m *Manager) provision(ctx context.Context, server, name string) error {
	conn, err := m.connector.Open(ctx, server, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	statement := fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s.%s",
		sqltext.QuoteIdent(m.opts.Schema), sqltext.QuoteIdent(structure.ConstraintSequence))
	if _, err := conn.DB.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("failed to execute %q: %w", statement, err)
	}
	return nil
}

// Clone copies MAIN into a new TEST or MILESTONE instance.
func (m *Manager) Clone(ctx context.Context, logicalID int64, target catalog.EntityType) (*catalog.PhysicalDatabase, error) {
	if target == catalog.EntityMain {
		return nil, apperr.BadRequest("MAIN cannot be cloned onto itself")
	}

	mainRec, err := m.catalog.FindPhysical(ctx, logicalID, catalog.EntityMain)
	if err != nil {
		return nil, err
	}

	rec := &catalog.PhysicalDatabase{
		LogicalID:  logicalID,
		EntityType:  target,
		Server:      mainRec.Server,
		Host:        mainRec.Host,
		ImportState: catalog.ImportRunning,
	}
	if err := m.catalog.CreatePhysical(ctx, rec); err != nil {
		return nil, err
	}

	created := false
	kind := "clone-" + strings.ToLower(string(target))
	err = m.lifecycle(ctx, mainRec.Server, logicalID, kind, rec.ConsumedName(), func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			return s.terminate(ctx, mainRec.ConsumedName())
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepCreate, func() error {
			return s.createFrom(ctx, rec.ConsumedName(), mainRec.ConsumedName())
		}); err != nil {
			return err
		}
		created = true
		return nil
	})
	m.imported(ctx, rec, err)
	if err != nil {
		if !created {
			m.forget(ctx, rec)
		}
		return nil, err
	}
	return rec, nil
}

// MergeIntoMain replaces MAIN with the source instance: MAIN is dropped, the
// source database takes its name and the source record is deleted. Staging
// copies of either side are discarded since they no longer describe anything.
func (m *Manager) MergeIntoMain(ctx context.Context, logicalID int64, source catalog.EntityType) error {
	if source == catalog.EntityMain {
		return apperr.BadRequest("MAIN cannot be merged into itself")
	}

	mainRec, err := m.catalog.FindPhysical(ctx, logicalID, catalog.EntityMain)
	if err != nil {
		return err
	}
	src, err := m.catalog.FindPhysical(ctx, logicalID, source)
	if err != nil {
		return err
	}
	if src.Server != mainRec.Server {
		return apperr.BadRequest("%s lives on server %s but MAIN lives on %s", source, src.Server, mainRec.Server)
	}

	mainName, srcName := mainRec.ConsumedName(), src.ConsumedName()
	kind := "merge-" + strings.ToLower(string(source))

	return m.lifecycle(ctx, mainRec.Server, logicalID, kind, mainName, func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			exists, err := s.exists(ctx, srcName)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.NotFound("database %s does not exist", srcName)
			}
			return s.terminate(ctx, mainName, srcName)
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepDrop, func() error {
			return s.drop(ctx, mainName)
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepRename, func() error {
			return s.rename(ctx, srcName, mainName)
		}); err != nil {
			return err
		}
		return s.step(ctx, catalog.StepFinalize, func() error {
			if err := s.drop(ctx, mainRec.StagingName()); err != nil {
				return err
			}
			if err := s.drop(ctx, src.StagingName()); err != nil {
				return err
			}
			return m.catalog.DeletePhysical(ctx, src.ID)
		})
	})
}

// DropInstance drops an instance, its staging copy and its record. MAIN can
// only be dropped once it is the last instance left.
func (m *Manager) DropInstance(ctx context.Context, logicalID int64, entity catalog.EntityType) error {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return err
	}

	if entity == catalog.EntityMain {
		records, err := m.catalog.ListPhysical(ctx, logicalID)
		if err != nil {
			return err
		}
		if len(records) > 1 {
			return apperr.BadRequest("logical database %d still has %d other instances", logicalID, len(records)-1)
		}
	}

	name := rec.ConsumedName()
	return m.lifecycle(ctx, rec.Server, logicalID, "drop-instance", name, func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			return s.terminate(ctx, name, rec.StagingName())
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepDrop, func() error {
			if err := s.drop(ctx, rec.StagingName()); err != nil {
				return err
			}
			return s.drop(ctx, name)
		}); err != nil {
			return err
		}
		return s.step(ctx, catalog.StepFinalize, func() error {
			return m.catalog.DeletePhysical(ctx, rec.ID)
		})
	})
}

// ListInstances reports every instance of a logical database with its live
// staging state, refreshing the recorded size on the way.
func (m *Manager) ListInstances(ctx context.Context, logicalID int64) ([]Instance, error) {
	records, err := m.catalog.ListPhysical(ctx, logicalID)
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(records))
	for _, rec := range records {
		inst, err := m.inspect(ctx, rec)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func (m *Manager) inspect(ctx context.Context, rec *catalog.PhysicalDatabase) (Instance, error) {
	inst := Instance{Record: rec, ConsumedName: rec.ConsumedName()}

	admin, err := m.connector.Admin(ctx, rec.Server)
	if err != nil {
		return inst, err
	}
	defer admin.Close()

	inst.StagingExists, err = databaseExists(ctx, admin.DB, rec.StagingName())
	if err != nil {
		return inst, err
	}

	var size int64
	err = admin.DB.QueryRowContext(ctx,
		"SELECT pg_database_size(datname) FROM pg_database WHERE datname = $1", inst.ConsumedName).Scan(&size)
	switch {
	case err == nil:
		rec.SizeBytes = &size
		if err := m.catalog.SetSize(ctx, rec.ID, size); err != nil {
			m.logger.WithError(err).Warnf("failed to record size of %s", inst.ConsumedName)
		}
	default:
		m.logger.WithError(err).Warnf("failed to read size of %s", inst.ConsumedName)
	}

	return inst, nil
}

// Identity returns the database identity of an instance for role
// provisioning.
func (m *Manager) Identity(ctx context.Context, logicalID int64, entity catalog.EntityType) (*Identity, error) {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Record:       rec,
		ConsumedName: rec.ConsumedName(),
		Server:       rec.Server,
		Host:         rec.Host,
	}, nil
}

// Resolve maps a logical id, instance and staging flag to the server and
// database name a structural request runs against.
func (m *Manager) Resolve(ctx context.Context, logicalID int64, entity catalog.EntityType, staging bool) (server, name string, err error) {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return "", "", err
	}
	if !staging {
		return rec.Server, rec.ConsumedName(), nil
	}

	admin, err := m.connector.Admin(ctx, rec.Server)
	if err != nil {
		return "", "", err
	}
	defer admin.Close()

	exists, err := databaseExists(ctx, admin.DB, rec.StagingName())
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", apperr.NotFound("%s instance of logical database %d has no staging copy", entity, logicalID)
	}
	return rec.Server, rec.StagingName(), nil
}

// forget removes a record whose database was never created.
// imported settles the import state of a record created in ImportRunning.
// The state is informational, so failing to store it only warns.
func (m *Manager) imported(ctx context.Context, rec *catalog.PhysicalDatabase, opErr error) {
	state := catalog.ImportDone
	if opErr != nil {
		state = catalog.ImportFailed
	}
	if err := m.catalog.SetImportState(context.WithoutCancel(ctx), rec.ID, state); err != nil {
		m.logger.WithError(err).Warnf("failed to mark %s import %s", rec.ConsumedName(), state)
		return
	}
	rec.ImportState = state
}

func (m *Manager) forget(ctx context.Context, rec *catalog.PhysicalDatabase) {
	err := m.catalog.DeletePhysical(context.WithoutCancel(ctx), rec.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		m.logger.WithError(err).Warnf("failed to remove record of uncreated database %s", rec.ConsumedName())
	}
}
