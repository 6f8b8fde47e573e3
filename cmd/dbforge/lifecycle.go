package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/dbforge/internal/profiles"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage the MAIN, TEST and MILESTONE instances of a logical database",
}

var instanceCreateMainCmd = &cobra.Command{
	Use:   "create-main",
	Short: "Create and provision the MAIN instance",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		record, err := env.svc.CreateMain(cmd.Context(), actor, targetDB, instanceServer, instanceHost)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, record)
	}),
}

var instanceCloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Copy MAIN into the TEST or MILESTONE instance given by --instance",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		record, err := env.svc.Clone(cmd.Context(), actor, targetDB, entity)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, record)
	}),
}

var instanceMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Replace MAIN with the instance given by --instance",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		return env.svc.MergeIntoMain(cmd.Context(), actor, targetDB, entity)
	}),
}

var instanceDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop an instance together with its staging copy",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		return env.svc.DropInstance(cmd.Context(), actor, targetDB, entity)
	}),
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances with their size and staging state",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		instances, err := env.svc.ListInstances(cmd.Context(), actor, targetDB)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, instances)
	}),
}

var instanceIdentityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Show the physical identity of an instance for role provisioning",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		identity, err := env.svc.DatabaseIdentity(cmd.Context(), actor, targetDB, entity)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, identity)
	}),
}

var stagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Create, merge or drop the staging copy of an instance",
}

var stagingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a fresh staging copy, replacing any existing one",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		name, err := env.svc.CreateStaging(cmd.Context(), actor, targetDB, entity)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, map[string]string{"staging": name})
	}),
}

var stagingMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Replace the instance with its staging copy",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		return env.svc.MergeStaging(cmd.Context(), actor, targetDB, entity)
	}),
}

var stagingDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Throw the staging copy away",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		entity, err := currentEntity()
		if err != nil {
			return err
		}
		return env.svc.DropStaging(cmd.Context(), actor, targetDB, entity)
	}),
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and resolve interrupted lifecycle operations",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List operations that did not finish",
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, _ []string) error {
		ops, err := env.svc.PendingOperations(cmd.Context(), actor, journalDB)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, ops)
	}),
}

var journalResolveCmd = &cobra.Command{
	Use:   "resolve <operation-id>",
	Short: "Mark an interrupted operation as repaired by hand",
	Args:  cobra.ExactArgs(1),
	RunE: withEnvironment(func(cmd *cobra.Command, env *environment, args []string) error {
		return env.svc.ResolveOperation(cmd.Context(), actor, args[0])
	}),
}

var (
	instanceServer string
	instanceHost   string
	journalDB      int64
)

func init() {
	addTargetFlags(instanceCmd, false)
	addTargetFlags(stagingCmd, false)

	instanceCreateMainCmd.Flags().StringVar(&instanceServer, "server", profiles.DefaultServer, "Server profile that hosts the database")
	instanceCreateMainCmd.Flags().StringVar(&instanceHost, "host", "", "Host name clients use to reach the server")
	instanceCmd.AddCommand(instanceCreateMainCmd, instanceCloneCmd, instanceMergeCmd, instanceDropCmd, instanceListCmd, instanceIdentityCmd)

	stagingCmd.AddCommand(stagingCreateCmd, stagingMergeCmd, stagingDropCmd)

	journalListCmd.Flags().Int64Var(&journalDB, "db", 0, "Only list operations of this logical database")
	journalCmd.AddCommand(journalListCmd, journalResolveCmd)

	rootCmd.AddCommand(instanceCmd, stagingCmd, journalCmd)
}

