package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/service"
)

var describeCmd = &cobra.Command{
	Use:   "describe [table]",
	Short: "Show the metadata view of one table or of every table",
	Args:  cobra.MaximumNArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		return onTarget(func(target service.Target) error {
			if len(args) == 1 {
				view, err := env.svc.DescribeTable(cmd.Context(), actor, target, args[0])
				if err != nil {
					return err
				}
				return printOutput(os.Stdout, view)
			}
			views, err := env.svc.DescribeDatabase(cmd.Context(), actor, target)
			if err != nil {
				return err
			}
			return printOutput(os.Stdout, views)
		})
	}),
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Manage the canvas layout of tables",
}

var positionsSetCmd = &cobra.Command{
	Use:   "set <table=x,y>...",
	Short: "Store canvas positions for tables",
	Args:  cobra.MinimumNArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		positions, err := parsePositions(args)
		if err != nil {
			return err
		}
		return env.svc.UpdatePositions(cmd.Context(), actor, targetDB, positions)
	}),
}

func init() {
	addTargetFlags(describeCmd, true)
	addTargetFlags(positionsCmd, false)
	positionsCmd.AddCommand(positionsSetCmd)
	rootCmd.AddCommand(describeCmd, positionsCmd)
}

// parsePositions reads arguments of the form table=x,y.
func parsePositions(args []string) ([]schema.Position, error) {
	positions := make([]schema.Position, 0, len(args))
	for _, arg := range args {
		table, coords, ok := strings.Cut(arg, "=")
		if !ok || table == "" {
			return nil, apperr.BadRequest("invalid position %q: expected table=x,y", arg)
		}
		xs, ys, ok := strings.Cut(coords, ",")
		if !ok {
			return nil, apperr.BadRequest("invalid position %q: expected table=x,y", arg)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, apperr.BadRequest("invalid x in %q: %v", arg, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, apperr.BadRequest("invalid y in %q: %v", arg, err)
		}
		positions = append(positions, schema.Position{Table: table, X: x, Y: y})
	}
	return positions, nil
}
