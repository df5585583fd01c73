package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/conduit/pkg/runtime"
)

// ListTables returns the base tables of the public schema, excluding the
// migration tracking table.
func ListTables(ctx context.Context, q runtime.Querier) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		  AND table_name != 'schema_migrations'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}
