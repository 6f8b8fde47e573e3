package service

import (
	"context"
	"database/sql"

	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

func (s *Service) CreateTable(ctx context.Context, actor string, target Target, name string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.CreateTable(ctx, db, name)
	})
}

func (s *Service) RenameTable(ctx context.Context, actor string, target Target, name, newName string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.RenameTable(ctx, db, name, newName)
	})
}

func (s *Service) DeleteTable(ctx context.Context, actor string, target Target, name string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.DeleteTable(ctx, db, name)
	})
}

func (s *Service) SetTableComment(ctx context.Context, actor string, target Target, name string, comment *string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.SetTableComment(ctx, db, name, comment)
	})
}

func (s *Service) CreateColumn(ctx context.Context, actor string, target Target, table string, req structure.ColumnRequest) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.CreateColumn(ctx, db, table, req)
	})
}

func (s *Service) UpdateColumn(ctx context.Context, actor string, target Target, table, column string, req structure.ColumnRequest) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.UpdateColumn(ctx, db, table, column, req)
	})
}

func (s *Service) DeleteColumn(ctx context.Context, actor string, target Target, table, column string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.DeleteColumn(ctx, db, table, column)
	})
}

// CreateConstraint returns the stored, suffixed constraint name.
func (s *Service) CreateConstraint(ctx context.Context, actor string, target Target, table string, req structure.ConstraintRequest) (string, error) {
	var stored string
	err := s.mutate(ctx, actor, target, func(db *sql.DB) error {
		var err error
		stored, err = s.engine.CreateConstraint(ctx, db, table, req)
		return err
	})
	return stored, err
}

func (s *Service) RenameConstraint(ctx context.Context, actor string, target Target, table, name, newName string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.RenameConstraint(ctx, db, table, name, newName)
	})
}

func (s *Service) DeleteConstraint(ctx context.Context, actor string, target Target, table, name string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.DeleteConstraint(ctx, db, table, name)
	})
}

func (s *Service) CreateIndex(ctx context.Context, actor string, target Target, table string, req structure.IndexRequest) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.CreateIndex(ctx, db, table, req)
	})
}

func (s *Service) RenameIndex(ctx context.Context, actor string, target Target, name, newName string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.RenameIndex(ctx, db, name, newName)
	})
}

func (s *Service) DeleteIndex(ctx context.Context, actor string, target Target, name string) error {
	return s.mutate(ctx, actor, target, func(db *sql.DB) error {
		return s.engine.DeleteIndex(ctx, db, name)
	})
}
