package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/cmd/conduit/output"
	"github.com/marshallshelly/conduit/pkg/engine/postgres"
	"github.com/marshallshelly/conduit/pkg/integrity"
	"github.com/marshallshelly/conduit/pkg/models"
)

// checkCmd verifies referential integrity of a live database
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check referential integrity",
	Long: `Scan every table in one read-only transaction and report rows whose
foreign keys reference a missing row. Exits non-zero when any are found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		g, err := models.Graph()
		if err != nil {
			return fmt.Errorf("failed to build schema: %w", err)
		}
		dbConfig, err := cfg.Database()
		if err != nil {
			return err
		}
		e, err := postgres.Open(ctx, dbConfig, g, postgres.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()

		violations, err := integrity.Check(ctx, e)
		if err != nil {
			return fmt.Errorf("integrity check failed: %w", err)
		}
		if len(violations) == 0 {
			output.Success("No dangling references in %d tables", len(g.Order()))
			return nil
		}

		output.Section("Dangling References")
		for _, v := range violations {
			output.Item("violation", "%s", v)
		}
		logger.Warn("integrity violations", zap.Int("count", len(violations)))
		return fmt.Errorf("%d integrity violation(s)", len(violations))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
