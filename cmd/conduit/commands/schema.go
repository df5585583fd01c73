package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/conduit/pkg/migration"
	"github.com/marshallshelly/conduit/pkg/models"
)

var schemaDown bool

// schemaCmd prints the DDL for the model tables
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema DDL",
	Long: `Print the CREATE TABLE statements for every model table, parents before
the tables that reference them. No database is needed.

Examples:
  conduit schema          # CREATE statements
  conduit schema --down   # DROP statements, dependents first`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := models.Graph()
		if err != nil {
			return fmt.Errorf("failed to build schema: %w", err)
		}
		up, down := migration.NewPlanner().GenerateSchema(g)
		if schemaDown {
			_, err = fmt.Fprint(cmd.OutOrStdout(), down)
		} else {
			_, err = fmt.Fprint(cmd.OutOrStdout(), up)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaDown, "down", false, "Print DROP statements instead")
}
