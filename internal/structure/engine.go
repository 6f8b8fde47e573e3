// Package structure builds and runs the DDL statement sequences that create,
// alter and drop tables, columns, constraints and indexes.
//
// Every mutation validates its request against the live catalog and then runs
// its statements inside a single transaction, so a failure part way through
// leaves nothing behind.
package structure

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/metrics"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/sqltext"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

// ConstraintSequence is the per-database sequence whose values suffix every
// constraint name.
const ConstraintSequence = "dbforge_constraint_seq"

type Engine struct {
	introspector *schema.Introspector
	logger       *logger.Logger
	metrics      *metrics.Collector
}

func NewEngine(introspector *schema.Introspector, logger *logger.Logger, metrics *metrics.Collector) *Engine {
	return &Engine{
		introspector: introspector,
		logger:       logger,
		metrics:      metrics,
	}
}

type statement struct {
	text string
	args []any
}

// plan accumulates the statements of one mutation in execution order.
type plan struct {
	statements []statement
}

// add appends DDL built from already quoted parts.
func (p *plan) add(format string, args ...any) {
	p.statements = append(p.statements, statement{text: fmt.Sprintf(format, args...)})
}

// bind appends a statement whose $n placeholders are bound to args.
func (p *plan) bind(text string, args ...any) {
	p.statements = append(p.statements, statement{text: text, args: args})
}

func (p *plan) empty() bool {
	return len(p.statements) == 0
}

// run executes fn inside a transaction and records the outcome.
func (e *Engine) run(ctx context.Context, db *sql.DB, object, action string, fn func(tx *sql.Tx) error) error {
	started := time.Now()
	err := database.WithTx(ctx, db, fn)
	e.metrics.ObserveStructure(object, action, started, err)
	if err != nil {
		e.logger.WithError(err).Debugf("%s %s failed", object, action)
	}
	return err
}

func (e *Engine) execute(ctx context.Context, q database.Queryer, p *plan) error {
	for _, stmt := range p.statements {
		if len(stmt.args) > 0 {
			e.logger.Debugf("executing: %s %v", stmt.text, stmt.args)
		} else {
			e.logger.Debugf("executing: %s", stmt.text)
		}
		if _, err := q.ExecContext(ctx, stmt.text, stmt.args...); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt.text, err)
		}
	}
	return nil
}

// qualified renders a schema-qualified object name.
func (e *Engine) qualified(name string) string {
	return sqltext.QuoteIdent(e.introspector.Schema()).String() + "." + sqltext.QuoteIdent(name).String()
}

func ident(name string) string {
	return sqltext.QuoteIdent(name).String()
}

func sequenceName(table, column string) string {
	return fmt.Sprintf("%s_%s_seq", table, column)
}

// nextvalDefault renders the default expression that draws from sequence.
func (e *Engine) nextvalDefault(sequence string) string {
	return fmt.Sprintf("nextval(%s)", sqltext.QuoteLiteral(e.qualified(sequence)))
}
