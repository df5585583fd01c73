package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// update applies set to the row at key and carries changed referenced
// columns to every referencing row.
func (t *tx) update(ctx context.Context, meta *schema.TableMetadata, key engine.Key, set engine.Row) (engine.Row, error) {
	oldEnc := encodeKey(meta, key)
	old, ok := t.read(meta.Name).rows[oldEnc]
	if !ok {
		return nil, runtime.NotFound(meta.Name, key)
	}

	next := old.Clone()
	for col, v := range set {
		if _, ok := meta.Column(col); !ok {
			return nil, fmt.Errorf("unknown column %s.%s", meta.Name, col)
		}
		next[col] = engine.Normalize(v)
	}
	changed := changedColumns(old, next)
	if len(changed) == 0 {
		return old, nil
	}

	if err := checkNotNull(meta, next); err != nil {
		return nil, err
	}
	data := t.read(meta.Name)
	newEnc := encodeKey(meta, next)
	if newEnc != oldEnc {
		if _, dup := data.rows[newEnc]; dup {
			return nil, runtime.Violation(runtime.ErrDuplicateKey, meta.Name, meta.PrimaryKey.Name,
				engine.KeyOf(meta, next).String())
		}
	}
	if err := checkUnique(meta, data, next, oldEnc); err != nil {
		return nil, err
	}
	for _, fk := range meta.ForeignKeys {
		if touches(fk.Columns, changed) {
			if err := t.checkReference(meta, fk, next); err != nil {
				return nil, err
			}
		}
	}

	w := t.write(meta.Name)
	delete(w.rows, oldEnc)
	w.rows[newEnc] = next

	for _, ref := range t.engine.graph.Referencing(meta.Name) {
		if !touches(ref.ForeignKey.ReferencedColumns, changed) {
			continue
		}
		if err := t.onUpdate(ctx, ref, old, next); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// onUpdate applies one foreign key's ON UPDATE action to the rows that
// referenced the parent's old values.
func (t *tx) onUpdate(ctx context.Context, ref schema.Reference, old, next engine.Row) error {
	fk := ref.ForeignKey
	children := t.referencing(ref, old)
	if len(children) == 0 {
		return nil
	}

	switch fk.OnUpdate {
	case schema.Cascade, schema.SetNull:
		op := StepRetarget
		if fk.OnUpdate == schema.SetNull {
			op = StepSetNull
		}
		for _, child := range children {
			set := make(engine.Row, len(fk.Columns))
			for i, col := range fk.Columns {
				if op == StepRetarget {
					set[col] = next[fk.ReferencedColumns[i]]
				} else {
					set[col] = nil
				}
			}
			key := engine.KeyOf(ref.Table, child)
			if err := t.step(ctx, Step{Op: op, Table: ref.Table.Name, Key: key, ForeignKey: fk.Name}); err != nil {
				return err
			}
			if _, err := t.update(ctx, ref.Table, key, set); err != nil {
				return err
			}
		}
		return nil
	default:
		return runtime.Violation(runtime.ErrRestrictViolation, ref.Table.Name, fk.Name,
			fmt.Sprintf("%d row(s) still reference %s", len(children), fk.ReferencedTable))
	}
}

// delete removes row and applies every ON DELETE action that targets it,
// deepest dependents first.
func (t *tx) delete(ctx context.Context, meta *schema.TableMetadata, row engine.Row) error {
	delete(t.write(meta.Name).rows, encodeKey(meta, row))

	var restricted []schema.Reference
	for _, ref := range t.engine.graph.Referencing(meta.Name) {
		fk := ref.ForeignKey
		switch fk.OnDelete {
		case schema.Cascade:
			for _, child := range t.referencing(ref, row) {
				enc := encodeKey(ref.Table, child)
				// Reached already through another path.
				if _, ok := t.read(ref.Table.Name).rows[enc]; !ok {
					continue
				}
				key := engine.KeyOf(ref.Table, child)
				if err := t.step(ctx, Step{Op: StepDelete, Table: ref.Table.Name, Key: key, ForeignKey: fk.Name}); err != nil {
					return err
				}
				if err := t.delete(ctx, ref.Table, child); err != nil {
					return err
				}
			}
		case schema.SetNull:
			for _, child := range t.referencing(ref, row) {
				set := make(engine.Row, len(fk.Columns))
				for _, col := range fk.Columns {
					set[col] = nil
				}
				key := engine.KeyOf(ref.Table, child)
				if err := t.step(ctx, Step{Op: StepSetNull, Table: ref.Table.Name, Key: key, ForeignKey: fk.Name}); err != nil {
					return err
				}
				if _, err := t.update(ctx, ref.Table, key, set); err != nil {
					return err
				}
			}
		default:
			restricted = append(restricted, ref)
		}
	}

	// RESTRICT and NO ACTION are checked once the cascades have run.
	for _, ref := range restricted {
		if children := t.referencing(ref, row); len(children) > 0 {
			return runtime.Violation(runtime.ErrRestrictViolation, ref.Table.Name, ref.ForeignKey.Name,
				fmt.Sprintf("%d row(s) still reference %s", len(children), meta.Name))
		}
	}
	return nil
}

// referencing returns the visible rows of ref.Table whose foreign key
// columns equal parent's referenced columns.
func (t *tx) referencing(ref schema.Reference, parent engine.Row) []engine.Row {
	fk := ref.ForeignKey
	var out []engine.Row
	for _, child := range t.read(ref.Table.Name).rows {
		matches := true
		for i, col := range fk.Columns {
			if !engine.Equal(child[col], parent[fk.ReferencedColumns[i]]) {
				matches = false
				break
			}
		}
		if matches {
			out = append(out, child)
		}
	}
	slices.SortFunc(out, func(a, b engine.Row) int {
		return strings.Compare(encodeKey(ref.Table, a), encodeKey(ref.Table, b))
	})
	return out
}

// checkReference verifies the row fk names exists. A foreign key with any
// NULL column is not checked, as in SQL.
func (t *tx) checkReference(meta *schema.TableMetadata, fk schema.ForeignKeyMetadata, row engine.Row) error {
	for _, col := range fk.Columns {
		if row[col] == nil {
			return nil
		}
	}
	for _, parent := range t.read(fk.ReferencedTable).rows {
		found := true
		for i, col := range fk.Columns {
			if !engine.Equal(row[col], parent[fk.ReferencedColumns[i]]) {
				found = false
				break
			}
		}
		if found {
			return nil
		}
	}

	values := make([]string, len(fk.Columns))
	for i, col := range fk.Columns {
		values[i] = fmt.Sprintf("%s=%v", col, row[col])
	}
	return runtime.Violation(runtime.ErrForeignKeyViolation, meta.Name, fk.Name,
		fmt.Sprintf("%s is not present in %s", strings.Join(values, ", "), fk.ReferencedTable))
}

func checkNotNull(meta *schema.TableMetadata, row engine.Row) error {
	for _, col := range meta.Columns {
		if !col.Nullable && row[col.Name] == nil {
			return runtime.Violation(runtime.ErrNotNullViolation, meta.Name, col.Name,
				fmt.Sprintf("column %s is required", col.Name))
		}
	}
	return nil
}

// checkUnique verifies no other row shares a unique column set with row.
// self is the encoded key of the row being replaced, if any.
func checkUnique(meta *schema.TableMetadata, data *tableData, row engine.Row, self string) error {
	for _, set := range meta.UniqueColumnSets() {
		for enc, other := range data.rows {
			if enc == self {
				continue
			}
			same := true
			for _, col := range set {
				if !engine.Equal(row[col], other[col]) {
					same = false
					break
				}
			}
			if same {
				return runtime.Violation(runtime.ErrDuplicateKey, meta.Name,
					meta.Name+"_"+strings.Join(set, "_")+"_key",
					fmt.Sprintf("%v already exists", set))
			}
		}
	}
	return nil
}

// defaultValue evaluates a column default. Only the current-timestamp
// functions and plain literals are understood.
func (t *tx) defaultValue(col schema.ColumnMetadata) (any, error) {
	expr := strings.TrimSpace(*col.Default)
	if schema.IsCurrentTimestamp(expr) {
		return engine.Normalize(t.engine.now()), nil
	}
	upper := strings.ToUpper(expr)
	switch {
	case upper == "NULL":
		return nil, nil
	case upper == "TRUE":
		return true, nil
	case upper == "FALSE":
		return false, nil
	case len(expr) >= 2 && expr[0] == '\'' && expr[len(expr)-1] == '\'':
		return strings.ReplaceAll(expr[1:len(expr)-1], "''", "'"), nil
	}
	if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("column %s: unsupported default %q", col.Name, expr)
}

func changedColumns(old, next engine.Row) []string {
	var changed []string
	for col, v := range next {
		o := old[col]
		if o == nil && v == nil {
			continue
		}
		if c, ok := engine.Compare(o, v); !ok || c != 0 {
			changed = append(changed, col)
		}
	}
	return changed
}

func touches(cols, changed []string) bool {
	for _, c := range cols {
		if slices.Contains(changed, c) {
			return true
		}
	}
	return false
}
