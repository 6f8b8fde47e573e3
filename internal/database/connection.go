package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kadirbelkuyu/dbforge/internal/config"

	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// Queryer is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Connection struct {
	DB     *sql.DB
	Server string
	Name   string
}

func NewConnection(ctx context.Context, cfg config.DatabaseConfig, server, database string) (*Connection, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString(database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database %s: %w", database, err)
	}

	if database == "" {
		database = cfg.Database
	}

	return &Connection{
		DB:     db,
		Server: server,
		Name:   database,
	}, nil
}

// Wrap adopts an already open handle, typically a sqlmock in tests.
func Wrap(db *sql.DB, server, database string) *Connection {
	return &Connection{DB: db, Server: server, Name: database}
}

func (c *Connection) Close() error {
	return c.DB.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on any error.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
