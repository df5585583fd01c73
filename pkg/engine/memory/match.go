package memory

import (
	"fmt"
	"sort"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// match evaluates conds against row with SQL precedence: AND binds tighter
// than OR. Comparisons involving NULL are false.
func match(row engine.Row, conds []builder.Condition) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}

	result := false
	term := true
	for i, c := range conds {
		if i > 0 && c.Logic == builder.LogicOr {
			result = result || term
			term = true
		}
		ok, err := matchOne(row, c)
		if err != nil {
			return false, err
		}
		term = term && ok
	}
	return result || term, nil
}

func matchOne(row engine.Row, c builder.Condition) (bool, error) {
	var ok bool
	var err error
	if len(c.Group) > 0 {
		ok, err = match(row, c.Group)
	} else {
		ok, err = compare(row[c.Column], c.Operator, c.Value)
	}
	if err != nil {
		return false, err
	}
	if c.Not {
		return !ok, nil
	}
	return ok, nil
}

func compare(v any, op builder.Operator, operand any) (bool, error) {
	switch op {
	case builder.OpIsNull:
		return v == nil, nil
	case builder.OpIsNotNull:
		return v != nil, nil
	case builder.OpIn, builder.OpNotIn:
		values, ok := operand.([]any)
		if !ok {
			return false, fmt.Errorf("IN/NOT IN operator requires []any value")
		}
		if v == nil {
			return false, nil
		}
		found := false
		for _, x := range values {
			if engine.Equal(v, engine.Normalize(x)) {
				found = true
				break
			}
		}
		if op == builder.OpIn {
			return found, nil
		}
		return !found, nil
	}

	w := engine.Normalize(operand)
	if v == nil || w == nil {
		return false, nil
	}
	c, ok := engine.Compare(v, w)
	if !ok {
		return false, fmt.Errorf("cannot compare %T with %T", v, w)
	}
	switch op {
	case builder.OpEqual:
		return c == 0, nil
	case builder.OpNotEqual:
		return c != 0, nil
	case builder.OpGreaterThan:
		return c > 0, nil
	case builder.OpGreaterThanOrEqual:
		return c >= 0, nil
	case builder.OpLessThan:
		return c < 0, nil
	case builder.OpLessThanOrEqual:
		return c <= 0, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// checkConditions rejects conditions on columns meta does not declare.
func checkConditions(meta *schema.TableMetadata, conds []builder.Condition) error {
	for _, c := range conds {
		if len(c.Group) > 0 {
			if err := checkConditions(meta, c.Group); err != nil {
				return err
			}
			continue
		}
		if _, ok := meta.Column(c.Column); !ok {
			return fmt.Errorf("unknown column %s.%s", meta.Name, c.Column)
		}
	}
	return nil
}

// sortRows orders rows by the given clauses, then by primary key so the
// order is total.
func sortRows(meta *schema.TableMetadata, rows []engine.Row, orders []builder.OrderBy) error {
	for _, o := range orders {
		if _, ok := meta.Column(o.Column); !ok {
			return fmt.Errorf("unknown column %s.%s", meta.Name, o.Column)
		}
	}
	if len(orders) == 0 {
		return nil
	}
	pk := meta.PrimaryKeyColumns()
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			c, _ := engine.Compare(rows[i][o.Column], rows[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Direction == builder.Desc {
				return c > 0
			}
			return c < 0
		}
		return lessByColumns(rows[i], rows[j], pk)
	})
	return nil
}

func lessByColumns(a, b engine.Row, cols []string) bool {
	for _, col := range cols {
		if c, _ := engine.Compare(a[col], b[col]); c != 0 {
			return c < 0
		}
	}
	return false
}
