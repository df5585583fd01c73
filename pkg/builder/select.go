package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// SelectQuery represents a SELECT over a single table.
type SelectQuery struct {
	table     *schema.TableMetadata
	columns   []string
	where     []Condition
	orderBy   []OrderBy
	limit     *int
	offset    *int
	distinct  bool
	count     bool
	exists    bool
	forUpdate bool
}

// Select starts a SELECT on table.
func Select(table *schema.TableMetadata) *SelectQuery {
	return &SelectQuery{table: table}
}

// Count starts a SELECT COUNT(*) on table.
func Count(table *schema.TableMetadata) *SelectQuery {
	return &SelectQuery{table: table, count: true}
}

// Exists starts a SELECT EXISTS(...) on table.
func Exists(table *schema.TableMetadata) *SelectQuery {
	return &SelectQuery{table: table, exists: true}
}

// Columns specifies which columns to select.
func (q *SelectQuery) Columns(cols ...string) *SelectQuery {
	q.columns = cols
	return q
}

// Where adds WHERE conditions.
func (q *SelectQuery) Where(conditions ...Condition) *SelectQuery {
	q.where = append(q.where, conditions...)
	return q
}

// Or adds an OR condition.
func (q *SelectQuery) Or(condition Condition) *SelectQuery {
	condition.Logic = LogicOr
	return q.Where(condition)
}

// OrderBy adds ORDER BY clauses.
func (q *SelectQuery) OrderBy(orders ...OrderBy) *SelectQuery {
	q.orderBy = append(q.orderBy, orders...)
	return q
}

// OrderByAsc adds an ascending ORDER BY clause.
func (q *SelectQuery) OrderByAsc(column string) *SelectQuery {
	return q.OrderBy(OrderBy{Column: column, Direction: Asc})
}

// OrderByDesc adds a descending ORDER BY clause.
func (q *SelectQuery) OrderByDesc(column string) *SelectQuery {
	return q.OrderBy(OrderBy{Column: column, Direction: Desc})
}

// Limit sets the LIMIT clause.
func (q *SelectQuery) Limit(limit int) *SelectQuery {
	q.limit = &limit
	return q
}

// Offset sets the OFFSET clause.
func (q *SelectQuery) Offset(offset int) *SelectQuery {
	q.offset = &offset
	return q
}

// Distinct adds DISTINCT to the query.
func (q *SelectQuery) Distinct() *SelectQuery {
	q.distinct = true
	return q
}

// ForUpdate adds FOR UPDATE lock.
func (q *SelectQuery) ForUpdate() *SelectQuery {
	q.forUpdate = true
	return q
}

// ToSQL generates the SQL query and arguments.
func (q *SelectQuery) ToSQL() (string, []any, error) {
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}
	if err := checkColumns(q.table, q.columns...); err != nil {
		return "", nil, err
	}
	if err := checkColumns(q.table, conditionColumns(q.where)...); err != nil {
		return "", nil, err
	}

	var sql strings.Builder

	sql.WriteString("SELECT ")
	switch {
	case q.count:
		sql.WriteString("COUNT(*)")
	case q.exists:
		sql.WriteString("EXISTS (SELECT 1")
	default:
		if q.distinct {
			sql.WriteString("DISTINCT ")
		}
		if len(q.columns) == 0 {
			sql.WriteString("*")
		} else {
			sql.WriteString(QuoteIdents(q.columns))
		}
	}

	sql.WriteString(" FROM ")
	sql.WriteString(QuoteIdent(q.table.Name))

	whereSQL, args, err := NewWhereBuilder(q.where...).Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	if whereSQL != "" {
		sql.WriteString(" ")
		sql.WriteString(whereSQL)
	}

	if q.exists {
		sql.WriteString(")")
		return sql.String(), args, nil
	}

	if len(q.orderBy) > 0 && !q.count {
		orderClauses := make([]string, len(q.orderBy))
		for i, order := range q.orderBy {
			if err := checkColumns(q.table, order.Column); err != nil {
				return "", nil, err
			}
			dir := order.Direction
			if dir == "" {
				dir = Asc
			}
			orderClauses[i] = QuoteIdent(order.Column) + " " + string(dir)
		}
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(orderClauses, ", "))
	}

	if q.limit != nil {
		fmt.Fprintf(&sql, " LIMIT %d", *q.limit)
	}
	if q.offset != nil && *q.offset > 0 {
		fmt.Fprintf(&sql, " OFFSET %d", *q.offset)
	}

	if q.forUpdate {
		sql.WriteString(" FOR UPDATE")
	}

	return sql.String(), args, nil
}
