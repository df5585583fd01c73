package builder

import (
	"fmt"
	"strings"
)

// WhereBuilder renders conditions into a WHERE clause with $n placeholders
// numbered from a starting index.
type WhereBuilder struct {
	conditions []Condition
	paramStart int
}

// NewWhereBuilder creates a new WhereBuilder whose placeholders start at $1.
func NewWhereBuilder(conditions ...Condition) *WhereBuilder {
	return NewWhereBuilderWithStart(1, conditions...)
}

// NewWhereBuilderWithStart creates a WhereBuilder for statements that
// already bound paramStart-1 arguments, such as the SET list of an UPDATE.
func NewWhereBuilderWithStart(paramStart int, conditions ...Condition) *WhereBuilder {
	return &WhereBuilder{conditions: conditions, paramStart: paramStart}
}

// Add adds a condition to the WHERE clause.
func (w *WhereBuilder) Add(condition Condition) {
	w.conditions = append(w.conditions, condition)
}

// Build generates the WHERE clause SQL and arguments. No conditions yield
// an empty clause.
func (w *WhereBuilder) Build() (string, []any, error) {
	if len(w.conditions) == 0 {
		return "", nil, nil
	}
	r := &whereRenderer{next: w.paramStart}
	if err := r.list(w.conditions); err != nil {
		return "", nil, err
	}
	return "WHERE " + r.sql.String(), r.args, nil
}

// whereRenderer accumulates SQL and arguments; next is the number of the
// next placeholder.
type whereRenderer struct {
	sql  strings.Builder
	args []any
	next int
}

// list renders conditions joined by each successor's logic operator, so
// Or(c) binds c to the condition before it.
func (r *whereRenderer) list(conditions []Condition) error {
	for i, c := range conditions {
		if i > 0 {
			logic := c.Logic
			if logic == "" {
				logic = LogicAnd
			}
			r.sql.WriteString(" " + string(logic) + " ")
		}
		if c.Not {
			r.sql.WriteString("NOT ")
		}
		if len(c.Group) > 0 {
			r.sql.WriteString("(")
			if err := r.list(c.Group); err != nil {
				return err
			}
			r.sql.WriteString(")")
			continue
		}
		if c.Not {
			r.sql.WriteString("(")
		}
		if err := r.one(c); err != nil {
			return err
		}
		if c.Not {
			r.sql.WriteString(")")
		}
	}
	return nil
}

func (r *whereRenderer) placeholder(v any) string {
	r.args = append(r.args, v)
	p := fmt.Sprintf("$%d", r.next)
	r.next++
	return p
}

func (r *whereRenderer) one(c Condition) error {
	column := QuoteIdent(c.Column)

	switch c.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		fmt.Fprintf(&r.sql, "%s %s %s", column, c.Operator, r.placeholder(c.Value))

	case OpIn, OpNotIn:
		values, ok := c.Value.([]any)
		if !ok {
			return fmt.Errorf("IN/NOT IN operator requires []any value")
		}
		// Empty IN matches nothing, empty NOT IN matches everything.
		if len(values) == 0 {
			if c.Operator == OpIn {
				r.sql.WriteString("FALSE")
			} else {
				r.sql.WriteString("TRUE")
			}
			return nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = r.placeholder(v)
		}
		fmt.Fprintf(&r.sql, "%s %s (%s)", column, c.Operator, strings.Join(placeholders, ", "))

	case OpIsNull:
		r.sql.WriteString(column + " IS NULL")

	case OpIsNotNull:
		r.sql.WriteString(column + " IS NOT NULL")

	default:
		return fmt.Errorf("unknown operator: %s", c.Operator)
	}
	return nil
}

func compare(column string, op Operator, value any) Condition {
	return Condition{Column: column, Operator: op, Value: value, Logic: LogicAnd}
}

// Eq matches column = value.
func Eq(column string, value any) Condition { return compare(column, OpEqual, value) }

// NotEq matches column <> value.
func NotEq(column string, value any) Condition { return compare(column, OpNotEqual, value) }

// Gt matches column > value.
func Gt(column string, value any) Condition { return compare(column, OpGreaterThan, value) }

// Gte matches column >= value.
func Gte(column string, value any) Condition { return compare(column, OpGreaterThanOrEqual, value) }

// Lt matches column < value.
func Lt(column string, value any) Condition { return compare(column, OpLessThan, value) }

// Lte matches column <= value.
func Lte(column string, value any) Condition { return compare(column, OpLessThanOrEqual, value) }

// In matches rows whose column is one of values.
func In(column string, values ...any) Condition { return compare(column, OpIn, values) }

// NotIn matches rows whose column is none of values.
func NotIn(column string, values ...any) Condition { return compare(column, OpNotIn, values) }

// IsNull matches NULL columns.
func IsNull(column string) Condition { return compare(column, OpIsNull, nil) }

// IsNotNull matches non-NULL columns.
func IsNotNull(column string) Condition { return compare(column, OpIsNotNull, nil) }

// Or joins cond to the preceding condition with OR.
func Or(cond Condition) Condition {
	cond.Logic = LogicOr
	return cond
}

// Not negates a condition.
func Not(cond Condition) Condition {
	cond.Not = true
	return cond
}

// Group parenthesises conditions so they combine as one.
func Group(conditions ...Condition) Condition {
	return Condition{Group: conditions, Logic: LogicAnd}
}
