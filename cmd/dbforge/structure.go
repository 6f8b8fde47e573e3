package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/service"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Create, rename, delete or comment tables",
}

var tableCreateCmd = &cobra.Command{
	Use:   "create <table>",
	Short: "Create an empty table",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.CreateTable(ctx, actor, target, args[0])
		})
	}),
}

var tableRenameCmd = &cobra.Command{
	Use:   "rename <table> <new-name>",
	Short: "Rename a table and the sequences it owns",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.RenameTable(ctx, actor, target, args[0], args[1])
		})
	}),
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete <table>",
	Short: "Drop a table",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.DeleteTable(ctx, actor, target, args[0])
		})
	}),
}

var tableCommentCmd = &cobra.Command{
	Use:   "comment <table> [comment]",
	Short: "Set a table comment, or clear it when no comment is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		var comment *string
		if len(args) == 2 {
			comment = &args[1]
		}
		return onTarget(func(target service.Target) error {
			return env.svc.SetTableComment(ctx, actor, target, args[0], comment)
		})
	}),
}

var columnCmd = &cobra.Command{
	Use:   "column",
	Short: "Create, update or delete columns",
}

var columnCreateCmd = &cobra.Command{
	Use:   "create <table> <column>",
	Short: "Add a column",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		req := columnRequest(cmd)
		req.Name = &args[1]
		return onTarget(func(target service.Target) error {
			return env.svc.CreateColumn(ctx, actor, target, args[0], req)
		})
	}),
}

var columnUpdateCmd = &cobra.Command{
	Use:   "update <table> <column>",
	Short: "Change the attributes given as flags and leave the rest alone",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		req := columnRequest(cmd)
		if cmd.Flags().Changed("rename") {
			req.Name = &columnRename
		}
		return onTarget(func(target service.Target) error {
			return env.svc.UpdateColumn(ctx, actor, target, args[0], args[1], req)
		})
	}),
}

var columnDeleteCmd = &cobra.Command{
	Use:   "delete <table> <column>",
	Short: "Drop a column",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.DeleteColumn(ctx, actor, target, args[0], args[1])
		})
	}),
}

var constraintCmd = &cobra.Command{
	Use:   "constraint",
	Short: "Create, rename or delete unique, primary and foreign key constraints",
}

var constraintCreateCmd = &cobra.Command{
	Use:   "create <table> <name>",
	Short: "Create a constraint; the stored name gets a numeric suffix",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		req := structure.ConstraintRequest{Name: args[1], Columns: constraintColumns}
		flags := cmd.Flags()
		switch constraintKind {
		case "unique":
			req.Unique = boolPtr(true)
		case "primary":
			req.Primary = boolPtr(true)
		case "foreign":
			req.Foreign = boolPtr(true)
		default:
			return apperr.BadRequest("unsupported constraint kind: %s", constraintKind)
		}
		if flags.Changed("references") {
			req.ReferencedTable = &constraintRefTable
		}
		if flags.Changed("references-column") {
			req.ReferencedColumn = &constraintRefColumn
		}

		return onTarget(func(target service.Target) error {
			stored, err := env.svc.CreateConstraint(ctx, actor, target, args[0], req)
			if err != nil {
				return err
			}
			return printOutput(os.Stdout, map[string]string{"name": stored})
		})
	}),
}

var constraintRenameCmd = &cobra.Command{
	Use:   "rename <table> <name> <new-name>",
	Short: "Rename a constraint",
	Args:  cobra.ExactArgs(3),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.RenameConstraint(ctx, actor, target, args[0], args[1], args[2])
		})
	}),
}

var constraintDeleteCmd = &cobra.Command{
	Use:   "delete <table> <name>",
	Short: "Drop a constraint",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.DeleteConstraint(ctx, actor, target, args[0], args[1])
		})
	}),
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create, rename or delete indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create <table> <name>",
	Short: "Create an index over --columns",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		req := structure.IndexRequest{Name: args[1], Columns: indexColumns}
		if indexUnique {
			req.Unique = boolPtr(true)
		}
		return onTarget(func(target service.Target) error {
			return env.svc.CreateIndex(ctx, actor, target, args[0], req)
		})
	}),
}

var indexRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename an index",
	Args:  cobra.ExactArgs(2),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.RenameIndex(ctx, actor, target, args[0], args[1])
		})
	}),
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Drop an index",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		ctx := cmd.Context()
		return onTarget(func(target service.Target) error {
			return env.svc.DeleteIndex(ctx, actor, target, args[0])
		})
	}),
}

var (
	columnType          string
	columnNullable      bool
	columnDefault       string
	columnDropDefault   bool
	columnAutoIncrement bool
	columnComment       string
	columnRename        string

	constraintKind      string
	constraintColumns   []string
	constraintRefTable  string
	constraintRefColumn string

	indexColumns []string
	indexUnique  bool
)

func init() {
	for _, cmd := range []*cobra.Command{tableCmd, columnCmd, constraintCmd, indexCmd} {
		addTargetFlags(cmd, true)
		rootCmd.AddCommand(cmd)
	}

	tableCmd.AddCommand(tableCreateCmd, tableRenameCmd, tableDeleteCmd, tableCommentCmd)

	for _, cmd := range []*cobra.Command{columnCreateCmd, columnUpdateCmd} {
		cmd.Flags().StringVar(&columnType, "type", "", "Column datatype, e.g. varchar(20) or integer")
		cmd.Flags().BoolVar(&columnNullable, "nullable", true, "Allow NULL values")
		cmd.Flags().StringVar(&columnDefault, "default", "", "Default value; plain text is stored as a literal")
		cmd.Flags().BoolVar(&columnAutoIncrement, "autoincrement", false, "Back the column with an owned sequence")
		cmd.Flags().StringVar(&columnComment, "comment", "", "Column comment")
	}
	columnCreateCmd.MarkFlagRequired("type")
	columnUpdateCmd.Flags().BoolVar(&columnDropDefault, "drop-default", false, "Remove the column default")
	columnUpdateCmd.Flags().StringVar(&columnRename, "rename", "", "New column name")
	columnCmd.AddCommand(columnCreateCmd, columnUpdateCmd, columnDeleteCmd)

	constraintCreateCmd.Flags().StringVar(&constraintKind, "kind", "unique", "Constraint kind: unique, primary or foreign")
	constraintCreateCmd.Flags().StringSliceVar(&constraintColumns, "columns", nil, "Constrained columns")
	constraintCreateCmd.Flags().StringVar(&constraintRefTable, "references", "", "Referenced table of a foreign key")
	constraintCreateCmd.Flags().StringVar(&constraintRefColumn, "references-column", "", "Referenced column of a foreign key")
	constraintCreateCmd.MarkFlagRequired("columns")
	constraintCmd.AddCommand(constraintCreateCmd, constraintRenameCmd, constraintDeleteCmd)

	indexCreateCmd.Flags().StringSliceVar(&indexColumns, "columns", nil, "Indexed columns")
	indexCreateCmd.Flags().BoolVar(&indexUnique, "unique", false, "Create a unique index")
	indexCreateCmd.MarkFlagRequired("columns")
	indexCmd.AddCommand(indexCreateCmd, indexRenameCmd, indexDeleteCmd)
}

// onTarget resolves the target flags and hands them to fn.
func onTarget(fn func(service.Target) error) error {
	target, err := currentTarget()
	if err != nil {
		return err
	}
	return fn(target)
}

// columnRequest builds a request from the flags the user actually set, so
// that update leaves every other attribute unchanged.
func columnRequest(cmd *cobra.Command) structure.ColumnRequest {
	flags := cmd.Flags()
	var req structure.ColumnRequest
	if flags.Changed("type") {
		req.Datatype = &columnType
	}
	if flags.Changed("nullable") {
		req.Nullable = &columnNullable
	}
	if flags.Changed("default") {
		req.Default = &columnDefault
	}
	if flags.Changed("autoincrement") {
		req.AutoIncrement = &columnAutoIncrement
	}
	if flags.Changed("comment") {
		req.Comment = &columnComment
	}
	req.DropDefault = columnDropDefault
	return req
}

func boolPtr(b bool) *bool {
	return &b
}
