package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/internal/profiles"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the database servers instances can be placed on",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known servers",
	RunE: withProfiles(func(manager *profiles.Manager, args []string) error {
		servers, err := manager.List()
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, servers)
	}),
}

var serverAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a server under a new identifier",
	Args:  cobra.ExactArgs(1),
	RunE: withProfiles(func(manager *profiles.Manager, args []string) error {
		server, err := manager.Add(args[0], serverSettings)
		if err != nil {
			return err
		}
		return printOutput(os.Stdout, server)
	}),
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Forget a server; databases recorded on it become unreachable",
	Args:  cobra.ExactArgs(1),
	RunE: withProfiles(func(manager *profiles.Manager, args []string) error {
		return manager.Remove(args[0])
	}),
}

var serverSettings config.DatabaseConfig

func init() {
	serverAddCmd.Flags().StringVar(&serverSettings.Host, "host", "", "Server host")
	serverAddCmd.Flags().IntVar(&serverSettings.Port, "port", 5432, "Server port")
	serverAddCmd.Flags().StringVar(&serverSettings.Username, "username", "", "Administrative user")
	serverAddCmd.Flags().StringVar(&serverSettings.Password, "password", "", "Administrative password")
	serverAddCmd.Flags().StringVar(&serverSettings.SSLMode, "sslmode", "disable", "SSL mode")
	serverAddCmd.Flags().StringVar(&serverSettings.Database, "database", config.DefaultAdminDatabase, "Maintenance database")
	serverAddCmd.MarkFlagRequired("host")
	serverAddCmd.MarkFlagRequired("username")

	serverCmd.AddCommand(serverListCmd, serverAddCmd, serverRemoveCmd)
	rootCmd.AddCommand(serverCmd)
}

// serverProfiles opens the profile directory without touching any database.
func serverProfiles() (*profiles.Manager, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, apperr.BadRequest("cannot load config: %v", err)
	}
	return profiles.NewManager(cfg.ProfilesDir, cfg.Admin), nil
}

func withProfiles(fn func(manager *profiles.Manager, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		manager, err := serverProfiles()
		if err == nil {
			err = fn(manager, args)
		}
		if err != nil {
			return commandError{err}
		}
		return nil
	}
}
