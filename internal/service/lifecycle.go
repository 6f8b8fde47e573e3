package service

import (
	"context"
	"fmt"

	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/internal/instance"
)

func (s *Service) CreateMain(ctx context.Context, actor string, logicalID int64, server, host string) (*catalog.PhysicalDatabase, error) {
	if err := s.authorize(ctx, actor, config.ActionCreate, logicalID); err != nil {
		return nil, err
	}
	rec, err := s.instances.CreateMain(ctx, logicalID, server, host)
	if err != nil {
		return nil, err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseCreated,
		Detail: fmt.Sprintf("created MAIN database %s on %s", rec.ConsumedName(), server)})
	return rec, nil
}

func (s *Service) Clone(ctx context.Context, actor string, logicalID int64, target catalog.EntityType) (*catalog.PhysicalDatabase, error) {
	if err := s.authorize(ctx, actor, config.ActionCreate, logicalID); err != nil {
		return nil, err
	}
	rec, err := s.instances.Clone(ctx, logicalID, target)
	if err != nil {
		return nil, err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseCreated,
		Detail: fmt.Sprintf("cloned MAIN into %s database %s", target, rec.ConsumedName())})
	return rec, nil
}

func (s *Service) MergeIntoMain(ctx context.Context, actor string, logicalID int64, source catalog.EntityType) error {
	if err := s.authorize(ctx, actor, config.ActionModify, logicalID); err != nil {
		return err
	}
	if err := s.instances.MergeIntoMain(ctx, logicalID, source); err != nil {
		return err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseDeleted,
		Detail: fmt.Sprintf("merged %s into MAIN", source)})
	return nil
}

func (s *Service) DropInstance(ctx context.Context, actor string, logicalID int64, entity catalog.EntityType) error {
	if err := s.authorize(ctx, actor, config.ActionDelete, logicalID); err != nil {
		return err
	}
	if err := s.instances.DropInstance(ctx, logicalID, entity); err != nil {
		return err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseDeleted,
		Detail: fmt.Sprintf("dropped %s instance", entity)})
	return nil
}

func (s *Service) ListInstances(ctx context.Context, actor string, logicalID int64) ([]instance.Instance, error) {
	if err := s.authorize(ctx, actor, config.ActionView, logicalID); err != nil {
		return nil, err
	}
	return s.instances.ListInstances(ctx, logicalID)
}

// DatabaseIdentity hands the physical identity of an instance to an external
// role provisioner.
func (s *Service) DatabaseIdentity(ctx context.Context, actor string, logicalID int64, entity catalog.EntityType) (*instance.Identity, error) {
	if err := s.authorize(ctx, actor, config.ActionView, logicalID); err != nil {
		return nil, err
	}
	return s.instances.Identity(ctx, logicalID, entity)
}

func (s *Service) CreateStaging(ctx context.Context, actor string, logicalID int64, entity catalog.EntityType) (string, error) {
	if err := s.authorize(ctx, actor, config.ActionCreate, logicalID); err != nil {
		return "", err
	}
	name, err := s.instances.CreateStaging(ctx, logicalID, entity)
	if err != nil {
		return "", err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseCreated,
		Detail: fmt.Sprintf("created staging database %s", name)})
	return name, nil
}

func (s *Service) MergeStaging(ctx context.Context, actor string, logicalID int64, entity catalog.EntityType) error {
	if err := s.authorize(ctx, actor, config.ActionModify, logicalID); err != nil {
		return err
	}
	if err := s.instances.MergeStaging(ctx, logicalID, entity); err != nil {
		return err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseDeleted,
		Detail: fmt.Sprintf("promoted staging copy of %s", entity)})
	return nil
}

func (s *Service) DropStaging(ctx context.Context, actor string, logicalID int64, entity catalog.EntityType) error {
	if err := s.authorize(ctx, actor, config.ActionDelete, logicalID); err != nil {
		return err
	}
	if err := s.instances.DropStaging(ctx, logicalID, entity); err != nil {
		return err
	}
	s.emit(AuditEvent{Actor: actor, LogicalID: logicalID, Kind: EventDatabaseDeleted,
		Detail: fmt.Sprintf("dropped staging copy of %s", entity)})
	return nil
}

// PendingOperations lists unfinished lifecycle operations; a zero logicalID
// lists every logical database.
func (s *Service) PendingOperations(ctx context.Context, actor string, logicalID int64) ([]*catalog.Operation, error) {
	if err := s.authorize(ctx, actor, config.ActionView, logicalID); err != nil {
		return nil, err
	}
	return s.records.PendingOperations(ctx, logicalID)
}

// ResolveOperation marks a stuck operation as handled so its logical
// database accepts lifecycle operations again.
func (s *Service) ResolveOperation(ctx context.Context, actor, id string) error {
	op, err := s.records.Operation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, config.ActionModify, op.LogicalID); err != nil {
		return err
	}
	if err := s.records.ResolveOperation(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("journal_id", id).Warnf("operation %s on logical database %d resolved by %s at step %s",
		op.Kind, op.LogicalID, actor, op.Step)
	return nil
}
