// Package builder generates parameterised PostgreSQL statements from table
// metadata and row maps.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// Query represents a generic database query.
type Query interface {
	// ToSQL generates the SQL query and parameter values.
	ToSQL() (sql string, args []any, err error)
}

// Condition represents a WHERE condition.
//
// Logic joins the condition to the one before it. AND binds tighter than OR,
// so [a, Or(b), c] reads as a OR (b AND c).
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Logic    LogicOperator
	Not      bool
	Group    []Condition // For grouped conditions
}

// OrderBy represents an ORDER BY clause.
type OrderBy struct {
	Column    string
	Direction OrderDirection
}

// Operator represents a comparison operator.
type Operator string

const (
	// OpEqual represents the = operator.
	OpEqual Operator = "="
	// OpNotEqual represents the != operator.
	OpNotEqual Operator = "!="
	// OpGreaterThan represents the > operator.
	OpGreaterThan Operator = ">"
	// OpGreaterThanOrEqual represents the >= operator.
	OpGreaterThanOrEqual Operator = ">="
	// OpLessThan represents the < operator.
	OpLessThan Operator = "<"
	// OpLessThanOrEqual represents the <= operator.
	OpLessThanOrEqual Operator = "<="
	// OpIn represents the IN operator.
	OpIn Operator = "IN"
	// OpNotIn represents the NOT IN operator.
	OpNotIn Operator = "NOT IN"
	// OpIsNull represents the IS NULL operator.
	OpIsNull Operator = "IS NULL"
	// OpIsNotNull represents the IS NOT NULL operator.
	OpIsNotNull Operator = "IS NOT NULL"
)

// LogicOperator represents a logical operator (AND/OR).
type LogicOperator string

const (
	// LogicAnd represents the AND operator.
	LogicAnd LogicOperator = "AND"
	// LogicOr represents the OR operator.
	LogicOr LogicOperator = "OR"
)

// OrderDirection represents the sort direction.
type OrderDirection string

const (
	// Asc represents ascending order.
	Asc OrderDirection = "ASC"
	// Desc represents descending order.
	Desc OrderDirection = "DESC"
)

// QuoteIdent quotes a PostgreSQL identifier. Every table and column name in
// generated SQL goes through it; "user" is a reserved word.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes each name and joins them with ", ".
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// KeyConditions returns one equality condition per entry of key, in column
// order, so generated SQL is stable.
func KeyConditions(key map[string]any) []Condition {
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	conds := make([]Condition, len(cols))
	for i, col := range cols {
		conds[i] = Eq(col, key[col])
	}
	return conds
}

// checkColumns rejects column names the table does not declare.
func checkColumns(table *schema.TableMetadata, cols ...string) error {
	for _, col := range cols {
		if _, ok := table.Column(col); !ok {
			return fmt.Errorf("unknown column %s.%s", table.Name, col)
		}
	}
	return nil
}

// conditionColumns collects the columns referenced by conds, groups included.
func conditionColumns(conds []Condition) []string {
	var cols []string
	for _, c := range conds {
		if len(c.Group) > 0 {
			cols = append(cols, conditionColumns(c.Group)...)
			continue
		}
		cols = append(cols, c.Column)
	}
	return cols
}

// sortedColumns returns the keys of values in table declaration order.
func sortedColumns(table *schema.TableMetadata, values map[string]any) ([]string, error) {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	if err := checkColumns(table, cols...); err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(table.Columns))
	for i, c := range table.Columns {
		pos[c.Name] = i
	}
	sort.Slice(cols, func(i, j int) bool { return pos[cols[i]] < pos[cols[j]] })
	return cols, nil
}
