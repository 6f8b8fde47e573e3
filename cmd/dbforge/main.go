package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/config"
	"github.com/kadirbelkuyu/dbforge/internal/database"
	"github.com/kadirbelkuyu/dbforge/internal/instance"
	"github.com/kadirbelkuyu/dbforge/internal/metrics"
	"github.com/kadirbelkuyu/dbforge/internal/profiles"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/service"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
	"github.com/kadirbelkuyu/dbforge/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "dbforge",
	Short: "Structure mutation and staging for PostgreSQL application databases",
	Long: `dbforge changes the structure of hosted PostgreSQL databases table by table,
keeps MAIN, TEST and MILESTONE instances of every logical database, and stages
changes in a copy that is merged back or thrown away.`,
}

var (
	configPath  string
	verbose     bool
	actor       string
	outputFmt   string
	metricsFile string

	targetDB       int64
	targetInstance string
	targetStaging  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dbforge.yaml", "Path to the dbforge configuration file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", os.Getenv("USER"), "Name the request is made on behalf of")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this textfile when the command ends")

	cobra.OnInitialize(func() {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
	})
}

// addTargetFlags binds the flags that name a logical database and one of its
// instances.
func addTargetFlags(cmd *cobra.Command, staging bool) {
	cmd.PersistentFlags().Int64Var(&targetDB, "db", 0, "Logical database id")
	cmd.PersistentFlags().StringVar(&targetInstance, "instance", string(catalog.EntityMain), "Instance type: MAIN, TEST or MILESTONE")
	if staging {
		cmd.PersistentFlags().BoolVar(&targetStaging, "staging", false, "Run against the staging copy of the instance")
	}
	cmd.MarkPersistentFlagRequired("db")
	cmd.RegisterFlagCompletionFunc("instance", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(catalog.EntityMain), string(catalog.EntityTest), string(catalog.EntityMilestone)}, cobra.ShellCompDirectiveNoFileComp
	})
}

func currentEntity() (catalog.EntityType, error) {
	return catalog.ParseEntityType(targetInstance)
}

func currentTarget() (service.Target, error) {
	entity, err := currentEntity()
	if err != nil {
		return service.Target{}, err
	}
	return service.Target{LogicalID: targetDB, Instance: entity, Staging: targetStaging}, nil
}

// environment is everything one command invocation needs.
type environment struct {
	cfg      *config.Config
	log      *logger.Logger
	catalog  *database.Connection
	registry *prometheus.Registry
	svc      *service.Service
}

func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, apperr.BadRequest("cannot load config: %v", err)
	}
	log := logger.New(os.Stderr, verbose || cfg.Logging.Verbose, cfg.Logging.Format)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	if err := collector.Register(registry); err != nil {
		return nil, apperr.Wrapf(err, "cannot register metrics")
	}

	catalogConn, err := database.NewConnection(ctx, cfg.Admin, profiles.DefaultServer, cfg.Catalog.Database)
	if err != nil {
		return nil, apperr.Wrapf(err, "cannot connect to catalog")
	}
	store := catalog.NewStore(catalogConn.DB, log)
	if err := store.Migrate(ctx); err != nil {
		catalogConn.Close()
		return nil, apperr.Wrapf(err, "cannot prepare catalog")
	}

	connector := database.NewConnector(profiles.NewManager(cfg.ProfilesDir, cfg.Admin))
	introspector := schema.NewIntrospector(cfg.MetadataSchema, log)
	manager := instance.NewManager(store, connector, instance.Options{
		OwnerRole: cfg.OwnerRole,
		Schema:    cfg.MetadataSchema,
	}, log, collector)

	svc := service.New(service.Dependencies{
		Instances:    manager,
		Records:      store,
		Connector:    connector,
		Engine:       structure.NewEngine(introspector, log, collector),
		Introspector: introspector,
		Authorizer:   service.NewConfigAuthorizer(cfg),
		Audit:        service.NewLogAuditSink(log),
		Workers:      cfg.IntrospectionWorkers,
		Logger:       log,
	})

	return &environment{
		cfg:      cfg,
		log:      log,
		catalog:  catalogConn,
		registry: registry,
		svc:      svc,
	}, nil
}

func (e *environment) Close() {
	e.svc.Flush()
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, e.registry); err != nil {
			e.log.Warnf("cannot write metrics file %s: %v", metricsFile, err)
		}
	}
	if err := e.catalog.Close(); err != nil {
		e.log.Warnf("cannot close catalog connection: %v", err)
	}
}

// withEnvironment wraps a command body with setup and teardown.
func withEnvironment(fn func(cmd *cobra.Command, env *environment, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context())
		if err != nil {
			return commandError{err}
		}
		defer env.Close()
		if err := fn(cmd, env, args); err != nil {
			return commandError{err}
		}
		return nil
	}
}

// commandError marks a failure raised by a command body, as opposed to flag
// or argument parsing done by cobra.
type commandError struct {
	err error
}

func (e commandError) Error() string { return e.err.Error() }
func (e commandError) Unwrap() error { return e.err }

// exitCode maps an error kind to the process exit status.
func exitCode(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindNamingConflict:
		return 4
	case apperr.KindForbidden:
		return 5
	default:
		return 1
	}
}

// report turns the error returned by the root command into the line shown to
// the user and the exit status. Usage errors come from cobra and carry no
// server text, so they are shown as they are.
func report(err error) (string, int) {
	var cmdErr commandError
	if !errors.As(err, &cmdErr) {
		return err.Error(), exitCode(apperr.KindBadRequest)
	}
	return apperr.Public(cmdErr.err), exitCode(apperr.KindOf(cmdErr.err))
}

func printOutput(out io.Writer, value any) error {
	switch strings.ToLower(outputFmt) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	return apperr.BadRequest("unsupported output format: %s", outputFmt)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		message, code := report(err)
		logger.New(os.Stderr, verbose, "text").WithError(err).Debug("command failed")
		fmt.Fprintln(os.Stderr, message)
		os.Exit(code)
	}
}
