package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// UpdateQuery represents an UPDATE query.
type UpdateQuery struct {
	table     *schema.TableMetadata
	sets      map[string]any
	where     []Condition
	returning []string
}

// Update starts an UPDATE of table.
func Update(table *schema.TableMetadata) *UpdateQuery {
	return &UpdateQuery{table: table, sets: make(map[string]any)}
}

// Set sets a column value for the UPDATE.
func (q *UpdateQuery) Set(column string, value any) *UpdateQuery {
	q.sets[column] = value
	return q
}

// SetMap sets multiple column values from a map.
func (q *UpdateQuery) SetMap(values map[string]any) *UpdateQuery {
	for col, val := range values {
		q.sets[col] = val
	}
	return q
}

// Where adds WHERE conditions.
func (q *UpdateQuery) Where(conditions ...Condition) *UpdateQuery {
	q.where = append(q.where, conditions...)
	return q
}

// Returning specifies columns to return after update.
func (q *UpdateQuery) Returning(columns ...string) *UpdateQuery {
	q.returning = columns
	return q
}

// ToSQL generates the UPDATE SQL and arguments.
func (q *UpdateQuery) ToSQL() (string, []any, error) {
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}
	if len(q.sets) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	columns, err := sortedColumns(q.table, q.sets)
	if err != nil {
		return "", nil, err
	}
	if err := checkColumns(q.table, conditionColumns(q.where)...); err != nil {
		return "", nil, err
	}

	var sql strings.Builder
	var args []any
	paramNum := 1

	sql.WriteString("UPDATE ")
	sql.WriteString(QuoteIdent(q.table.Name))
	sql.WriteString(" SET ")

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = fmt.Sprintf("%s = $%d", QuoteIdent(col), paramNum)
		args = append(args, q.sets[col])
		paramNum++
	}
	sql.WriteString(strings.Join(setClauses, ", "))

	whereSQL, whereArgs, err := NewWhereBuilderWithStart(paramNum, q.where...).Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	if whereSQL != "" {
		sql.WriteString(" ")
		sql.WriteString(whereSQL)
		args = append(args, whereArgs...)
	}

	if err := writeReturning(&sql, q.table, q.returning); err != nil {
		return "", nil, err
	}
	return sql.String(), args, nil
}
