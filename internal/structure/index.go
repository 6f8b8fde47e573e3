package structure

import (
	"context"
	"database/sql"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
)

func (e *Engine) CreateIndex(ctx context.Context, db *sql.DB, table string, req IndexRequest) error {
	if req.Name == "" {
		return apperr.BadRequest("index name is required")
	}
	if len(req.Columns) == 0 {
		return apperr.BadRequest("at least one column is required")
	}

	return e.run(ctx, db, "index", "create", func(tx *sql.Tx) error {
		if err := e.introspector.RequireTable(ctx, tx, table); err != nil {
			return err
		}
		exists, err := e.introspector.IndexExists(ctx, tx, req.Name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("index %s already exists", req.Name)
		}

		unique := ""
		if isTrue(req.Unique) {
			unique = "UNIQUE "
		}

		var p plan
		p.add("CREATE %sINDEX %s ON %s (%s)", unique, ident(req.Name), e.qualified(table), sqltext.JoinIdents(req.Columns))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) RenameIndex(ctx context.Context, db *sql.DB, name, newName string) error {
	if newName == "" {
		return apperr.BadRequest("new index name is required")
	}

	return e.run(ctx, db, "index", "update", func(tx *sql.Tx) error {
		if err := e.requireIndex(ctx, tx, name); err != nil {
			return err
		}
		exists, err := e.introspector.IndexExists(ctx, tx, newName)
		if err != nil {
			return err
		}
		if exists {
			return apperr.NamingConflict("index %s already exists", newName)
		}

		var p plan
		p.add("ALTER INDEX %s RENAME TO %s", e.qualified(name), ident(newName))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) DeleteIndex(ctx context.Context, db *sql.DB, name string) error {
	return e.run(ctx, db, "index", "delete", func(tx *sql.Tx) error {
		if err := e.requireIndex(ctx, tx, name); err != nil {
			return err
		}

		var p plan
		p.add("DROP INDEX %s", e.qualified(name))
		return e.execute(ctx, tx, &p)
	})
}

func (e *Engine) requireIndex(ctx context.Context, tx *sql.Tx, name string) error {
	exists, err := e.introspector.IndexExists(ctx, tx, name)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("index %s does not exist", name)
	}
	return nil
}
