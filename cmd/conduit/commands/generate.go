package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/cmd/conduit/output"
	"github.com/marshallshelly/conduit/pkg/migration"
	"github.com/marshallshelly/conduit/pkg/models"
)

var (
	// Generate flags
	empty   bool
	offline bool
)

// generateCmd generates migration files
var generateCmd = &cobra.Command{
	Use:   "generate NAME",
	Short: "Generate migration files",
	Long: `Generate timestamped up/down SQL files creating the model tables the
database does not have yet.

Examples:
  conduit generate initial_schema            # Diff against the database
  conduit generate initial_schema --offline  # Every table, no database needed
  conduit generate backfill --empty          # Empty migration for manual editing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&empty, "empty", false, "Generate empty migration for manual editing")
	generateCmd.Flags().BoolVar(&offline, "offline", false, "Assume an empty database instead of introspecting it")
}

func runGenerate(cmd *cobra.Command, name string) error {
	generator := migration.NewGenerator(cfg.MigrationsDir)

	if empty {
		file, err := generator.GenerateEmpty(name)
		if err != nil {
			return fmt.Errorf("failed to generate empty migration: %w", err)
		}
		output.Success("Created empty migration: %s", file.Version)
		output.Muted("  Up:   %s", file.UpPath)
		output.Muted("  Down: %s", file.DownPath)
		return nil
	}

	g, err := models.Graph()
	if err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}

	var existing []string
	if !offline {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		existing, err = migration.ListTables(ctx, db.Pool())
		if err != nil {
			return fmt.Errorf("failed to introspect database: %w", err)
		}
	}

	diff := migration.Diff(g, existing)
	if !diff.HasChanges() {
		output.Info("No schema changes detected. Database is in sync with models.")
		return nil
	}

	output.Section("Detected Schema Changes")
	output.Success("Tables to add: %d", len(diff.TablesAdded))
	for _, table := range diff.TablesAdded {
		output.Muted("    + %s", table.Name)
	}

	file, err := generator.Generate(name, diff)
	if err != nil {
		return fmt.Errorf("failed to generate migration: %w", err)
	}
	logger.Debug("migration generated", zap.String("version", file.Version), zap.Int("tables", len(diff.TablesAdded)))

	output.Success("Created migration: %s", file.Version)
	output.Muted("  Up:   %s", file.UpPath)
	output.Muted("  Down: %s", file.DownPath)
	return nil
}
