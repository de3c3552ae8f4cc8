package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/formatter"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/registry"
	"github.com/tordrt/schemasync/internal/schema"
)

// cliOptions holds persistent flag values
type cliOptions struct {
	dbURL      string
	sqlitePath string
	configPath string
	pgSchema   string
	logLevel   string
	logFormat  string
	format     string
}

// app is the state shared by subcommands once the root pre-run has loaded it
type app struct {
	opts    cliOptions
	cfg     *config.Config
	logger  *slog.Logger
	catalog *registry.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "schemasync",
		Short: "Reconcile a declared database schema with a live database",
		Long: `schemasync applies the built-in arena schema to a SQLite or PostgreSQL database,
reports drift between the declaration and the live tables, and additively
repairs missing tables, columns and indexes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.dbURL, "db-url", "", "Database URL (postgres://..., postgresql://... or sqlite://path)")
	flags.StringVar(&a.opts.sqlitePath, "sqlite", "", "SQLite database file path")
	flags.StringVar(&a.opts.configPath, "config", "", "YAML config file")
	flags.StringVarP(&a.opts.pgSchema, "pg-schema", "s", "", "PostgreSQL schema name (default: public)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVarP(&a.opts.format, "format", "f", "text", "Output format: text or markdown")

	rootCmd.AddCommand(
		a.initCmd(),
		a.diffCmd(),
		a.repairCmd(),
		a.ddlCmd(),
		a.describeCmd(),
		a.migrateCmd(),
	)
	return rootCmd
}

// load reads the config file, applies flag overrides, and builds the
// logger and catalog
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	a.logger = logging.New(level, format, cmd.ErrOrStderr())

	catalog, err := newCatalog()
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}
	a.catalog = catalog
	return nil
}

// applyFlags lets explicitly set flags win over file and environment values
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("pg-schema") {
		cfg.Postgres.Schema = a.opts.pgSchema
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.opts.logFormat
	}
}

// databaseURL resolves the target from --db-url, --sqlite or the config file
func (a *app) databaseURL() (string, error) {
	if a.opts.dbURL != "" && a.opts.sqlitePath != "" {
		return "", fmt.Errorf("only one of --db-url or --sqlite can be specified")
	}
	if a.opts.sqlitePath != "" {
		return "sqlite://" + a.opts.sqlitePath, nil
	}
	if a.opts.dbURL != "" {
		return a.opts.dbURL, nil
	}
	if a.cfg != nil && a.cfg.Database.URL != "" {
		return a.cfg.Database.URL, nil
	}
	return "", fmt.Errorf("one of --db-url or --sqlite must be specified (or database.url in --config)")
}

// dialectFor picks the dialect for commands that compile SQL without a
// connection: an explicit name first, then the configured URL, then SQLite
func (a *app) dialectFor(name string) (schema.Dialect, error) {
	if name == "" {
		if url, err := a.databaseURL(); err == nil && !strings.HasPrefix(url, "sqlite://") {
			name = "postgres"
		}
	}
	switch name {
	case "", "sqlite":
		return schema.SQLite, nil
	case "postgres", "postgresql":
		return schema.Postgres, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (use sqlite or postgres)", name)
	}
}

// open connects to the configured database
func (a *app) open(ctx context.Context) (*schemasync.Conn, error) {
	url, err := a.databaseURL()
	if err != nil {
		return nil, err
	}
	return schemasync.Open(ctx, url, &schemasync.Options{
		PostgresSchema: a.cfg.Postgres.Schema,
		SQLiteTuning:   a.cfg.SQLiteTuning(),
		PostgresTuning: a.cfg.PostgresTuning(),
		Logger:         a.logger,
	})
}

func (a *app) spec() *schema.SchemaSpec {
	spec, _ := a.catalog.Schema(catalogSchema)
	return spec
}

func (a *app) formatter(cmd *cobra.Command) (formatter.Formatter, error) {
	return formatter.New(a.opts.format, cmd.OutOrStdout())
}

func (a *app) closeConn(ctx context.Context, conn *schemasync.Conn) {
	if err := conn.Close(ctx); err != nil {
		a.logger.Warn("failed to close database connection", "error", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
