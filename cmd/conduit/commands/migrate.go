package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/cmd/conduit/output"
	"github.com/marshallshelly/conduit/cmd/conduit/tui"
	"github.com/marshallshelly/conduit/pkg/migration"
)

var (
	// Migrate flags
	dryRun      bool
	all         bool
	upSteps     int
	downSteps   int
	target      string
	interactive bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations to keep the database schema in sync with the models.

Subcommands:
  up      - Apply pending migrations
  down    - Rollback migrations
  status  - Show migration status`,
}

// migrateUpCmd applies pending migrations
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations to update the database schema.

Examples:
  conduit migrate up --all              # Apply all pending migrations
  conduit migrate up --steps 1          # Apply next migration
  conduit migrate up --dry-run --all    # Preview migrations without applying`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp(cmd.Context())
	},
}

// migrateDownCmd rolls back migrations
var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback migrations",
	Long: `Rollback applied migrations to revert database schema changes.

Examples:
  conduit migrate down --steps 1        # Rollback last migration
  conduit migrate down --target VERSION # Rollback everything newer than VERSION
  conduit migrate down --dry-run        # Preview rollback without executing`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(cmd.Context())
	},
}

// migrateStatusCmd shows migration status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the status of all migrations (pending, applied, failed).

Examples:
  conduit migrate status                # Show migration status
  conduit migrate status --json         # Output in JSON format`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")
	migrateUpCmd.Flags().BoolVar(&all, "all", false, "Apply all pending migrations")
	migrateUpCmd.Flags().IntVar(&upSteps, "steps", 0, "Number of migrations to apply")
	migrateUpCmd.MarkFlagsMutuallyExclusive("all", "steps")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateDownCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview rollback without executing")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "Number of migrations to rollback")
	migrateDownCmd.Flags().StringVar(&target, "target", "", "Rollback to specific version")

	migrateStatusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// openExecutor connects, prepares the tracking table and loads the
// migration files. The returned func releases the connection.
func openExecutor(ctx context.Context) (*migration.Executor, []migration.Migration, func(), error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	executor := migration.NewExecutor(db.Pool()).WithLogger(logger)
	if err := executor.Initialize(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return executor, migrations, db.Close, nil
}

func runMigrateUp(ctx context.Context) error {
	if !all && upSteps <= 0 && !interactive {
		return fmt.Errorf("must specify --all or --steps")
	}

	executor, migrations, closeDB, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if interactive {
		return tui.RunMigrateUI(ctx, tui.ActionUp, executor, migrations)
	}
	if len(migrations) == 0 {
		output.Warning("No migrations found")
		return nil
	}

	n := upSteps
	if all {
		n = 0
	}
	if dryRun {
		output.Section("DRY RUN - Preview")
	} else {
		output.Section("Applying Migrations")
	}
	applied, err := executor.ApplyAll(ctx, migrations, n, dryRun)
	for _, m := range applied {
		output.Item(statusFor(dryRun, "applied"), "%s - %s", m.Version, m.Name)
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	switch {
	case len(applied) == 0:
		output.Info("No pending migrations")
	case dryRun:
		output.Info("%d migration(s) would be applied", len(applied))
	default:
		logger.Info("migrations applied", zap.Int("count", len(applied)))
		output.Success("Successfully applied %d migration(s)", len(applied))
	}
	return nil
}

func runMigrateDown(ctx context.Context) error {
	executor, migrations, closeDB, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if interactive {
		return tui.RunMigrateUI(ctx, tui.ActionDown, executor, migrations)
	}

	if dryRun {
		output.Section("DRY RUN - Preview")
	} else {
		output.Section("Rolling Back Migrations")
	}

	var rolled []migration.Migration
	if target != "" {
		rolled, err = executor.RollbackTo(ctx, target, migrations, dryRun)
	} else {
		rolled, err = executor.RollbackSteps(ctx, migrations, downSteps, dryRun)
	}
	for _, m := range rolled {
		output.Item(statusFor(dryRun, "pending"), "%s - %s", m.Version, m.Name)
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	switch {
	case len(rolled) == 0:
		output.Info("No migrations to rollback")
	case dryRun:
		output.Info("%d migration(s) would be rolled back", len(rolled))
	default:
		logger.Info("migrations rolled back", zap.Int("count", len(rolled)))
		output.Success("Successfully rolled back %d migration(s)", len(rolled))
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	executor, migrations, closeDB, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	status, err := executor.GetStatus(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	if len(status) == 0 {
		output.Warning("No migrations found")
		return nil
	}
	printStatus(cmd, status)

	if err := executor.Validate(ctx, migrations); err != nil {
		output.Warning("%v", err)
	}
	return nil
}

func printStatus(cmd *cobra.Command, status []migration.MigrationRecord) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	_, _ = fmt.Fprintln(w, "-------\t----\t------\t----------")

	counts := map[migration.MigrationStatus]int{}
	for _, record := range status {
		appliedAt := "N/A"
		if record.AppliedAt != nil {
			appliedAt = record.AppliedAt.Format("2006-01-02 15:04:05")
		}
		counts[record.Status]++
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n",
			record.Version,
			record.Name,
			output.StatusIcon(string(record.Status)),
			record.Status,
			appliedAt,
		)
	}
	_ = w.Flush()

	summary := fmt.Sprintf("\nSummary: %d applied, %d pending", counts[migration.StatusApplied], counts[migration.StatusPending])
	if n := counts[migration.StatusFailed]; n > 0 {
		summary += fmt.Sprintf(", %d failed", n)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), summary)
}

func statusFor(dryRun bool, done string) string {
	if dryRun {
		return "running"
	}
	return done
}
