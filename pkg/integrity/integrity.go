// Package integrity checks that every foreign key in a database resolves.
// It reads through the engine contract, so the same check runs against the
// memory engine in tests and against PostgreSQL from the CLI.
package integrity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// Violation is a row whose foreign key names a missing row.
type Violation struct {
	Table      string
	Key        engine.Key
	ForeignKey string
	Referenced string
	Values     map[string]any
}

func (v Violation) String() string {
	cols := make([]string, 0, len(v.Values))
	for col, val := range v.Values {
		cols = append(cols, fmt.Sprintf("%s=%v", col, val))
	}
	sort.Strings(cols)
	return fmt.Sprintf("%s(%s) %s -> %s(%s) missing",
		v.Table, v.Key, v.ForeignKey, v.Referenced, strings.Join(cols, ", "))
}

// Verify returns every dangling reference visible to tx, in table order.
// A foreign key with a NULL column is not checked.
func Verify(ctx context.Context, tx engine.Tx, graph *schema.Graph) ([]Violation, error) {
	parents := map[string]map[string]bool{}
	keysOf := func(table string, cols []string) (map[string]bool, error) {
		id := table + "(" + strings.Join(cols, ",") + ")"
		if set, ok := parents[id]; ok {
			return set, nil
		}
		rows, err := tx.Select(ctx, table, engine.Query{})
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(rows))
		for _, row := range rows {
			set[encode(row, cols)] = true
		}
		parents[id] = set
		return set, nil
	}

	var out []Violation
	for _, table := range graph.Tables() {
		if len(table.ForeignKeys) == 0 {
			continue
		}
		rows, err := tx.Select(ctx, table.Name, engine.Query{})
		if err != nil {
			return nil, fmt.Errorf("integrity: read %s: %w", table.Name, err)
		}
		for _, fk := range table.ForeignKeys {
			set, err := keysOf(fk.ReferencedTable, fk.ReferencedColumns)
			if err != nil {
				return nil, fmt.Errorf("integrity: read %s: %w", fk.ReferencedTable, err)
			}
			for _, row := range rows {
				if hasNull(row, fk.Columns) || set[encode(row, fk.Columns)] {
					continue
				}
				values := make(map[string]any, len(fk.Columns))
				for _, col := range fk.Columns {
					values[col] = row[col]
				}
				out = append(out, Violation{
					Table:      table.Name,
					Key:        engine.KeyOf(table, row),
					ForeignKey: fk.Name,
					Referenced: fk.ReferencedTable,
					Values:     values,
				})
			}
		}
	}
	return out, nil
}

// Check runs Verify in a read-only transaction on e.
func Check(ctx context.Context, e engine.Engine) ([]Violation, error) {
	var out []Violation
	err := engine.RunInTx(ctx, e, engine.TxOptions{ReadOnly: true}, func(tx engine.Tx) error {
		var err error
		out, err = Verify(ctx, tx, e.Schema())
		return err
	})
	return out, err
}

func encode(row engine.Row, cols []string) string {
	return engine.EncodeValues(row, cols)
}

func hasNull(row engine.Row, cols []string) bool {
	for _, col := range cols {
		if row[col] == nil {
			return true
		}
	}
	return false
}
