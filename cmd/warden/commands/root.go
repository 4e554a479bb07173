package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cloudwarden/cloudwarden/pkg/config"
	"github.com/cloudwarden/cloudwarden/pkg/stores"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "warden",
		Short: "CloudWarden - Cloud Governance Policy Engine",
		Long: `CloudWarden validates and executes declarative cloud governance
policies. Policy documents are checked against a schema composed from
the resource capability registries before anything runs, and every run
is recorded for reporting.

Features:
  - Schema composed from pluggable resource capability registries
  - Violations pinpointed to the failing policy entry
  - Dry-run execution with per-policy results
  - Run history, reports and metrics backed by SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel, logFormat)
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "warden config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console|json)")

	// Add subcommands
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newMetricsCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// configureLogging applies the global logging flags.
func configureLogging(level, format string) {
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// loadConfig loads the warden configuration, falling back to defaults
// when no --config flag was given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

// openStore opens and migrates the run store named by the config.
func openStore(ctx context.Context, cfg *config.Config) (stores.Store, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            cfg.Store.Path,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize run store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate run store: %w", err)
	}
	return store, nil
}
