package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// DeleteQuery represents a DELETE query.
type DeleteQuery struct {
	table     *schema.TableMetadata
	where     []Condition
	returning []string
}

// Delete starts a DELETE from table.
func Delete(table *schema.TableMetadata) *DeleteQuery {
	return &DeleteQuery{table: table}
}

// Where adds WHERE conditions to the DELETE query.
func (q *DeleteQuery) Where(conditions ...Condition) *DeleteQuery {
	q.where = append(q.where, conditions...)
	return q
}

// Returning specifies columns to return after delete.
func (q *DeleteQuery) Returning(columns ...string) *DeleteQuery {
	q.returning = columns
	return q
}

// ToSQL generates the DELETE SQL and arguments.
func (q *DeleteQuery) ToSQL() (string, []any, error) {
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}
	if err := checkColumns(q.table, conditionColumns(q.where)...); err != nil {
		return "", nil, err
	}

	var sql strings.Builder
	sql.WriteString("DELETE FROM ")
	sql.WriteString(QuoteIdent(q.table.Name))

	whereSQL, args, err := NewWhereBuilder(q.where...).Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	if whereSQL != "" {
		sql.WriteString(" ")
		sql.WriteString(whereSQL)
	}

	if err := writeReturning(&sql, q.table, q.returning); err != nil {
		return "", nil, err
	}
	return sql.String(), args, nil
}
