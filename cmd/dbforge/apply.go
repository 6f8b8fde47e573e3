package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/dbforge/internal/batch"
	"github.com/kadirbelkuyu/dbforge/internal/service"
	"github.com/kadirbelkuyu/dbforge/pkg/progress"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the structural changes listed in a change file",
	Long: `Apply runs every change of a YAML change file in order, each in its own
transaction, and stops at the first change that fails. Point it at a staging
copy with --staging to review the result before merging.`,
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		file, err := batch.Load(changeFile)
		if err != nil {
			return err
		}

		return onTarget(func(target service.Target) error {
			bar := progress.NewBar(os.Stderr, len(file.Changes), "applying changes")
			defer bar.Finish()

			runner := batch.NewRunner(env.svc, actor, target)
			runner.OnApplied = func(result batch.Result) {
				bar.Step(result.Change.String())
				entry := env.log.WithField("change", result.Change.String())
				if result.Stored != "" {
					entry = entry.WithField("stored_name", result.Stored)
				}
				entry.Debug("change applied")
			}

			results, err := runner.Run(cmd.Context(), file.Changes)
			env.log.Infof("applied %d of %d changes", len(results), len(file.Changes))
			if err != nil {
				return err
			}
			return printOutput(os.Stdout, stored(results))
		})
	}),
}

var changeFile string

func init() {
	addTargetFlags(applyCmd, true)
	applyCmd.Flags().StringVarP(&changeFile, "file", "f", "", "Path to the change file")
	applyCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(applyCmd)
}

// stored maps each requested constraint name to the name it was stored under.
func stored(results []batch.Result) map[string]string {
	names := make(map[string]string)
	for _, result := range results {
		if result.Stored != "" {
			names[result.Change.Constraint.Name] = result.Stored
		}
	}
	return names
}
