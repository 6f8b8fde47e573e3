package instance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
)

// session is one journaled lifecycle operation running on a single pinned
// administrative connection that holds the logical id's advisory lock.
type session struct {
	m      *Manager
	conn   *sql.Conn
	op     *catalog.Operation
	server string
	log    *logrus.Entry
}

// lifecycle runs fn as the journaled operation kind against databaseName on
// server. The journal entry is closed with fn's outcome.
func (m *Manager) lifecycle(ctx context.Context, server string, logicalID int64, kind, databaseName string, fn func(s *session) error) (err error) {
	admin, err := m.connector.Admin(ctx, server)
	if err != nil {
		return err
	}
	defer admin.Close()

	conn, err := admin.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to pin administrative connection: %w", err)
	}
	defer conn.Close()

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", logicalID).Scan(&locked); err != nil {
		return fmt.Errorf("failed to acquire lifecycle lock: %w", err)
	}
	if !locked {
		return apperr.NamingConflict("another lifecycle operation is running on logical database %d", logicalID)
	}
	defer func() {
		if _, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", logicalID); unlockErr != nil {
			m.logger.WithError(unlockErr).Warnf("failed to release lifecycle lock of logical database %d", logicalID)
		}
	}()

	op, err := m.catalog.BeginOperation(ctx, logicalID, kind, databaseName)
	if err != nil {
		return err
	}

	s := &session{
		m:      m,
		conn:   conn,
		op:     op,
		server: server,
		log: m.logger.WithFields(logrus.Fields{
			"logical_id": logicalID,
			"database":   databaseName,
			"operation":  kind,
			"journal_id": op.ID,
		}),
	}

	s.log.Info("lifecycle operation started")
	err = fn(s)

	if finishErr := m.catalog.Finish(context.WithoutCancel(ctx), op, err); finishErr != nil {
		s.log.WithError(finishErr).Error("failed to close journal entry")
		if err == nil {
			err = finishErr
		}
	}
	if err != nil {
		s.log.WithError(err).WithField("step", op.Step).Error("lifecycle operation failed")
		return err
	}
	s.log.Info("lifecycle operation finished")
	return nil
}

// step journals step before running fn.
func (s *session) step(ctx context.Context, step catalog.Step, fn func() error) error {
	if err := s.m.catalog.Advance(ctx, s.op, step); err != nil {
		return err
	}
	s.log.WithField("step", step).Info("lifecycle step")
	err := fn()
	s.m.metrics.LifecycleStep(s.op.Kind, string(step), err)
	return err
}

func (s *session) exec(ctx context.Context, format string, args ...any) error {
	statement := fmt.Sprintf(format, args...)
	s.log.Debugf("executing: %s", statement)
	if _, err := s.conn.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("failed to execute %q: %w", statement, err)
	}
	return nil
}

// terminate disconnects every other backend from the named databases.
func (s *session) terminate(ctx context.Context, names ...string) error {
	for _, name := range names {
		_, err := s.conn.ExecContext(ctx,
			"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()", name)
		if err != nil {
			return fmt.Errorf("failed to terminate connections to %s: %w", name, err)
		}
	}
	return nil
}

func (s *session) exists(ctx context.Context, name string) (bool, error) {
	return databaseExists(ctx, s.conn, name)
}

func (s *session) createFrom(ctx context.Context, name, template string) error {
	return s.exec(ctx, "CREATE DATABASE %s WITH TEMPLATE %s OWNER %s",
		sqltext.QuoteIdent(name), sqltext.QuoteIdent(template), sqltext.QuoteIdent(s.m.opts.OwnerRole))
}

func (s *session) drop(ctx context.Context, name string) error {
	return s.exec(ctx, "DROP DATABASE IF EXISTS %s", sqltext.QuoteIdent(name))
}

func (s *session) rename(ctx context.Context, from, to string) error {
	return s.exec(ctx, "ALTER DATABASE %s RENAME TO %s", sqltext.QuoteIdent(from), sqltext.QuoteIdent(to))
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func databaseExists(ctx context.Context, q rowQueryer, name string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", name, err)
	}
	return exists, nil
}
