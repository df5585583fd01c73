package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/cmd/conduit/output"
	"github.com/marshallshelly/conduit/pkg/config"
	"github.com/marshallshelly/conduit/pkg/logging"
	"github.com/marshallshelly/conduit/pkg/migration"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

var (
	v      = config.New()
	cfg    *config.Config
	logger = zap.NewNop()

	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - relational store for the conduit article platform",
	Long: `Conduit manages the PostgreSQL schema behind the article platform: users,
articles, comments, tags, follows and favorites, linked by natural keys that
cascade on delete and on rename.

Settings come from flags, CONDUIT_* environment variables (DATABASE_URL is
also honoured), a .env file and an optional conduit.yaml.`,
	Version:       "0.4.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		output.Out = cmd.OutOrStdout()
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db", "", "Database connection URL")
	flags.String("migrations-dir", "./migrations", "Directory for migration files")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", config.FormatConsole, "Log format (console, json)")

	// Flags only win over the environment when set explicitly.
	for key, name := range map[string]string{
		config.KeyDB:            "db",
		config.KeyMigrationsDir: "migrations-dir",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// connect opens a pool to the configured database.
func connect(ctx context.Context) (*runtime.DB, error) {
	dbConfig, err := cfg.Database()
	if err != nil {
		return nil, err
	}
	db, err := runtime.Connect(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// loadMigrations reads every migration in the configured directory.
func loadMigrations() ([]migration.Migration, error) {
	migrations, err := migration.NewGenerator(cfg.MigrationsDir).LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return migrations, nil
}
