package schema

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kadirbelkuyu/dbforge/internal/database"
)

// Describe assembles the Table Metadata View for one table straight from the
// catalog. It has no side effects and keeps no state between calls.
func (i *Introspector) Describe(ctx context.Context, q database.Queryer, table string) (*TableView, error) {
	columns, err := i.Columns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	comments, err := i.Comments(ctx, q, table)
	if err != nil {
		return nil, err
	}

	indexes, err := i.Indexes(ctx, q, table)
	if err != nil {
		return nil, err
	}

	keys, err := i.ForeignKeys(ctx, q, table)
	if err != nil {
		return nil, err
	}

	view := &TableView{
		Name:      table,
		Comment:   comments.Table,
		Columns:   ColumnViews(columns, comments),
		Indexes:   make(map[string]IndexView, len(indexes)),
		Relations: make(map[string]RelationView, len(keys)),
	}

	for _, idx := range indexes {
		view.Indexes[idx.Name] = IndexView{Type: idx.Kind(), Columns: idx.Columns}
	}

	referenced := map[string]map[string]ColumnView{}
	for _, fk := range keys {
		refColumns, ok := referenced[fk.ReferencedTable]
		if !ok {
			refColumns, err = i.referencedColumns(ctx, q, fk.ReferencedTable)
			if err != nil {
				return nil, fmt.Errorf("failed to describe referenced table %s: %w", fk.ReferencedTable, err)
			}
			referenced[fk.ReferencedTable] = refColumns
		}

		view.Relations[fk.Name] = RelationView{
			Column:            fk.ColumnName,
			ReferencedTable:   fk.ReferencedTable,
			ReferencedColumn:  fk.ReferencedColumn,
			ReferencedColumns: refColumns,
		}
	}

	return view, nil
}

func (i *Introspector) referencedColumns(ctx context.Context, q database.Queryer, table string) (map[string]ColumnView, error) {
	columns, err := i.columns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	comments, err := i.Comments(ctx, q, table)
	if err != nil {
		return nil, err
	}
	return ColumnViews(columns, comments), nil
}

// DescribeAll describes every base table, running at most workers table
// descriptions at once.
func (i *Introspector) DescribeAll(ctx context.Context, q database.Queryer, workers int) (map[string]*TableView, error) {
	names, err := i.TableNames(ctx, q)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = 1
	}

	views := make([]*TableView, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for idx, name := range names {
		group.Go(func() error {
			view, err := i.Describe(groupCtx, q, name)
			if err != nil {
				return fmt.Errorf("failed to describe table %s: %w", name, err)
			}
			views[idx] = view
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]*TableView, len(views))
	for _, view := range views {
		result[view.Name] = view
	}

	i.logger.Debugf("%d tables described", len(result))
	return result, nil
}

// ColumnViews converts catalog columns to their presentation form.
func ColumnViews(columns []Column, comments Comments) map[string]ColumnView {
	views := make(map[string]ColumnView, len(columns))
	for _, col := range columns {
		def, autoIncrement := NormalizeDefault(col.DefaultValue)

		var comment *string
		if text, ok := comments.Columns[col.Name]; ok {
			comment = &text
		}

		views[col.Name] = ColumnView{
			Position:      col.Position,
			Default:       def,
			Nullable:      col.IsNullable,
			Datatype:      ToDesigner(col),
			AutoIncrement: autoIncrement,
			Comment:       comment,
		}
	}
	return views
}
