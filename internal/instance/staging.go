package instance

import (
	"context"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
)

// CreateStaging clones an instance into its staging copy. An existing staging
// copy is discarded first.
func (m *Manager) CreateStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) (string, error) {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return "", err
	}
	name, staging := rec.ConsumedName(), rec.StagingName()

	err = m.lifecycle(ctx, rec.Server, logicalID, "create-staging", name, func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			return s.terminate(ctx, name, staging)
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepDrop, func() error {
			return s.drop(ctx, staging)
		}); err != nil {
			return err
		}
		return s.step(ctx, catalog.StepCreate, func() error {
			return s.createFrom(ctx, staging, name)
		})
	})
	if err != nil {
		return "", err
	}
	return staging, nil
}

// MergeStaging promotes the staging copy: the instance database is dropped
// and the staging copy takes its name.
func (m *Manager) MergeStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) error {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return err
	}
	name, staging := rec.ConsumedName(), rec.StagingName()

	return m.lifecycle(ctx, rec.Server, logicalID, "merge-staging", name, func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			if err := s.requireStaging(ctx, staging); err != nil {
				return err
			}
			return s.terminate(ctx, name, staging)
		}); err != nil {
			return err
		}
		if err := s.step(ctx, catalog.StepDrop, func() error {
			return s.drop(ctx, name)
		}); err != nil {
			return err
		}
		return s.step(ctx, catalog.StepRename, func() error {
			return s.rename(ctx, staging, name)
		})
	})
}

// DropStaging discards the staging copy of an instance.
func (m *Manager) DropStaging(ctx context.Context, logicalID int64, entity catalog.EntityType) error {
	rec, err := m.catalog.FindPhysical(ctx, logicalID, entity)
	if err != nil {
		return err
	}
	staging := rec.StagingName()

	return m.lifecycle(ctx, rec.Server, logicalID, "drop-staging", staging, func(s *session) error {
		if err := s.step(ctx, catalog.StepTerminate, func() error {
			if err := s.requireStaging(ctx, staging); err != nil {
				return err
			}
			return s.terminate(ctx, staging)
		}); err != nil {
			return err
		}
		return s.step(ctx, catalog.StepDrop, func() error {
			return s.drop(ctx, staging)
		})
	})
}

func (s *session) requireStaging(ctx context.Context, staging string) error {
	exists, err := s.exists(ctx, staging)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("staging database %s does not exist", staging)
	}
	return nil
}
