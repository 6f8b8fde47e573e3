package service

import (
	"context"
	"database/sql"

	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
)

// DescribeTable returns the live Table Metadata View of one table with its
// stored layout position.
func (s *Service) DescribeTable(ctx context.Context, actor string, target Target, table string) (*schema.TableView, error) {
	if err := s.authorize(ctx, actor, config.ActionView, target.LogicalID); err != nil {
		return nil, err
	}

	var view *schema.TableView
	err := s.withDatabase(ctx, target, func(db *sql.DB) error {
		var err error
		view, err = s.introspector.Describe(ctx, db, table)
		return err
	})
	if err != nil {
		return nil, err
	}

	positions, err := s.records.Positions(ctx, target.LogicalID)
	if err != nil {
		return nil, err
	}
	place(view, positions)
	return view, nil
}

// DescribeDatabase returns the Table Metadata View of every table.
func (s *Service) DescribeDatabase(ctx context.Context, actor string, target Target) (map[string]*schema.TableView, error) {
	if err := s.authorize(ctx, actor, config.ActionView, target.LogicalID); err != nil {
		return nil, err
	}

	var views map[string]*schema.TableView
	err := s.withDatabase(ctx, target, func(db *sql.DB) error {
		var err error
		views, err = s.introspector.DescribeAll(ctx, db, s.workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	positions, err := s.records.Positions(ctx, target.LogicalID)
	if err != nil {
		return nil, err
	}
	for _, view := range views {
		place(view, positions)
	}
	return views, nil
}

func place(view *schema.TableView, positions map[string]schema.Position) {
	if pos, ok := positions[view.Name]; ok {
		view.X, view.Y = pos.X, pos.Y
	}
}

// UpdatePositions stores layout positions; the last write for a table wins.
func (s *Service) UpdatePositions(ctx context.Context, actor string, logicalID int64, positions []schema.Position) error {
	if err := s.authorize(ctx, actor, config.ActionModify, logicalID); err != nil {
		return err
	}
	return s.records.UpsertPositions(ctx, logicalID, positions)
}
