package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// InsertQuery represents a single-row INSERT.
type InsertQuery struct {
	table     *schema.TableMetadata
	values    map[string]any
	returning []string
}

// Insert starts an INSERT into table.
func Insert(table *schema.TableMetadata) *InsertQuery {
	return &InsertQuery{table: table, values: make(map[string]any)}
}

// Values sets the column values to insert. Columns left out take their
// database default.
func (q *InsertQuery) Values(values map[string]any) *InsertQuery {
	for col, val := range values {
		q.values[col] = val
	}
	return q
}

// Returning specifies columns to return after insert; "*" returns all.
func (q *InsertQuery) Returning(columns ...string) *InsertQuery {
	q.returning = columns
	return q
}

// ToSQL generates the INSERT SQL and arguments.
func (q *InsertQuery) ToSQL() (string, []any, error) {
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}

	columns, err := sortedColumns(q.table, q.values)
	if err != nil {
		return "", nil, err
	}

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	sql.WriteString(QuoteIdent(q.table.Name))

	args := make([]any, len(columns))
	if len(columns) == 0 {
		sql.WriteString(" DEFAULT VALUES")
	} else {
		placeholders := make([]string, len(columns))
		for i, col := range columns {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = q.values[col]
		}
		sql.WriteString(" (")
		sql.WriteString(QuoteIdents(columns))
		sql.WriteString(") VALUES (")
		sql.WriteString(strings.Join(placeholders, ", "))
		sql.WriteString(")")
	}

	if err := writeReturning(&sql, q.table, q.returning); err != nil {
		return "", nil, err
	}
	return sql.String(), args, nil
}

// writeReturning appends a RETURNING clause when columns is non-empty.
func writeReturning(sql *strings.Builder, table *schema.TableMetadata, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	sql.WriteString(" RETURNING ")
	if len(columns) == 1 && columns[0] == "*" {
		sql.WriteString("*")
		return nil
	}
	if err := checkColumns(table, columns...); err != nil {
		return err
	}
	sql.WriteString(QuoteIdents(columns))
	return nil
}
