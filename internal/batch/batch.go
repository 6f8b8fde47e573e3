// Package batch reads change files and applies their structural changes in
// order, one transaction per change.
package batch

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/service"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

const (
	OpTableCreate      = "table.create"
	OpTableRename      = "table.rename"
	OpTableDelete      = "table.delete"
	OpTableComment     = "table.comment"
	OpColumnCreate     = "column.create"
	OpColumnUpdate     = "column.update"
	OpColumnDelete     = "column.delete"
	OpConstraintCreate = "constraint.create"
	OpConstraintRename = "constraint.rename"
	OpConstraintDelete = "constraint.delete"
	OpIndexCreate      = "index.create"
	OpIndexRename      = "index.rename"
	OpIndexDelete      = "index.delete"
)

// Change is one entry of a change file. Which fields are read depends on Op.
type Change struct {
	Op         string                       `yaml:"op"`
	Table      string                       `yaml:"table,omitempty"`
	Name       string                       `yaml:"name,omitempty"`
	NewName    string                       `yaml:"new_name,omitempty"`
	Comment    *string                      `yaml:"comment,omitempty"`
	Column     *structure.ColumnRequest     `yaml:"column,omitempty"`
	Constraint *structure.ConstraintRequest `yaml:"constraint,omitempty"`
	Index      *structure.IndexRequest      `yaml:"index,omitempty"`
}

func (c Change) String() string {
	switch {
	case c.Table != "" && c.Name != "":
		return fmt.Sprintf("%s %s.%s", c.Op, c.Table, c.Name)
	case c.Table != "":
		return fmt.Sprintf("%s %s", c.Op, c.Table)
	default:
		return fmt.Sprintf("%s %s", c.Op, c.Name)
	}
}

type File struct {
	Changes []Change `yaml:"changes"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.BadRequest("failed to read change file: %v", err)
	}
	return Parse(data)
}

// Parse decodes a change file and checks every change before any is applied.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperr.BadRequest("failed to parse change file: %v", err)
	}
	for i, change := range file.Changes {
		if err := change.validate(); err != nil {
			return nil, apperr.Wrapf(err, "change %d", i+1)
		}
	}
	return &file, nil
}

func (c Change) validate() error {
	require := func(ok bool, field string) error {
		if !ok {
			return apperr.BadRequest("%s requires %s", c.Op, field)
		}
		return nil
	}

	switch c.Op {
	case OpTableCreate, OpTableDelete:
		return require(c.Table != "", "table")
	case OpTableRename:
		if err := require(c.Table != "", "table"); err != nil {
			return err
		}
		return require(c.NewName != "", "new_name")
	case OpTableComment:
		return require(c.Table != "", "table")
	case OpColumnCreate:
		if err := require(c.Table != "", "table"); err != nil {
			return err
		}
		return require(c.Column != nil, "column")
	case OpColumnUpdate:
		if err := require(c.Table != "" && c.Name != "", "table and name"); err != nil {
			return err
		}
		return require(c.Column != nil, "column")
	case OpColumnDelete, OpConstraintDelete:
		return require(c.Table != "" && c.Name != "", "table and name")
	case OpConstraintCreate:
		if err := require(c.Table != "", "table"); err != nil {
			return err
		}
		return require(c.Constraint != nil, "constraint")
	case OpConstraintRename:
		return require(c.Table != "" && c.Name != "" && c.NewName != "", "table, name and new_name")
	case OpIndexCreate:
		if err := require(c.Table != "", "table"); err != nil {
			return err
		}
		return require(c.Index != nil, "index")
	case OpIndexRename:
		return require(c.Name != "" && c.NewName != "", "name and new_name")
	case OpIndexDelete:
		return require(c.Name != "", "name")
	}
	return apperr.BadRequest("unknown change op %q", c.Op)
}

// Structure is the part of the service a batch drives.
type Structure interface {
	CreateTable(ctx context.Context, actor string, target service.Target, name string) error
	RenameTable(ctx context.Context, actor string, target service.Target, name, newName string) error
	DeleteTable(ctx context.Context, actor string, target service.Target, name string) error
	SetTableComment(ctx context.Context, actor string, target service.Target, name string, comment *string) error
	CreateColumn(ctx context.Context, actor string, target service.Target, table string, req structure.ColumnRequest) error
	UpdateColumn(ctx context.Context, actor string, target service.Target, table, column string, req structure.ColumnRequest) error
	DeleteColumn(ctx context.Context, actor string, target service.Target, table, column string) error
	CreateConstraint(ctx context.Context, actor string, target service.Target, table string, req structure.ConstraintRequest) (string, error)
	RenameConstraint(ctx context.Context, actor string, target service.Target, table, name, newName string) error
	DeleteConstraint(ctx context.Context, actor string, target service.Target, table, name string) error
	CreateIndex(ctx context.Context, actor string, target service.Target, table string, req structure.IndexRequest) error
	RenameIndex(ctx context.Context, actor string, target service.Target, name, newName string) error
	DeleteIndex(ctx context.Context, actor string, target service.Target, name string) error
}

// Result reports what one applied change produced.
type Result struct {
	Change Change
	// Stored is the suffixed name of a created constraint.
	Stored string
}

// Runner applies changes for one actor against one target.
type Runner struct {
	svc    Structure
	actor  string
	target service.Target
	// OnApplied, when set, is called after each successful change.
	OnApplied func(Result)
}

func NewRunner(svc Structure, actor string, target service.Target) *Runner {
	return &Runner{svc: svc, actor: actor, target: target}
}

// Run applies changes in order and stops at the first failure. Changes that
// were already applied stay applied.
func (r *Runner) Run(ctx context.Context, changes []Change) ([]Result, error) {
	results := make([]Result, 0, len(changes))
	for i, change := range changes {
		result, err := r.apply(ctx, change)
		if err != nil {
			return results, apperr.Wrapf(err, "change %d (%s)", i+1, change)
		}
		results = append(results, result)
		if r.OnApplied != nil {
			r.OnApplied(result)
		}
	}
	return results, nil
}

func (r *Runner) apply(ctx context.Context, c Change) (Result, error) {
	result := Result{Change: c}
	var err error

	switch c.Op {
	case OpTableCreate:
		err = r.svc.CreateTable(ctx, r.actor, r.target, c.Table)
	case OpTableRename:
		err = r.svc.RenameTable(ctx, r.actor, r.target, c.Table, c.NewName)
	case OpTableDelete:
		err = r.svc.DeleteTable(ctx, r.actor, r.target, c.Table)
	case OpTableComment:
		err = r.svc.SetTableComment(ctx, r.actor, r.target, c.Table, c.Comment)
	case OpColumnCreate:
		err = r.svc.CreateColumn(ctx, r.actor, r.target, c.Table, *c.Column)
	case OpColumnUpdate:
		err = r.svc.UpdateColumn(ctx, r.actor, r.target, c.Table, c.Name, *c.Column)
	case OpColumnDelete:
		err = r.svc.DeleteColumn(ctx, r.actor, r.target, c.Table, c.Name)
	case OpConstraintCreate:
		result.Stored, err = r.svc.CreateConstraint(ctx, r.actor, r.target, c.Table, *c.Constraint)
	case OpConstraintRename:
		err = r.svc.RenameConstraint(ctx, r.actor, r.target, c.Table, c.Name, c.NewName)
	case OpConstraintDelete:
		err = r.svc.DeleteConstraint(ctx, r.actor, r.target, c.Table, c.Name)
	case OpIndexCreate:
		err = r.svc.CreateIndex(ctx, r.actor, r.target, c.Table, *c.Index)
	case OpIndexRename:
		err = r.svc.RenameIndex(ctx, r.actor, r.target, c.Name, c.NewName)
	case OpIndexDelete:
		err = r.svc.DeleteIndex(ctx, r.actor, r.target, c.Name)
	default:
		err = apperr.BadRequest("unknown change op %q", c.Op)
	}
	return result, err
}
