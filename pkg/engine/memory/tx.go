package memory

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

type tx struct {
	engine   *Engine
	base     *snapshot
	overlay  map[string]*tableData // tables copied on first write
	readOnly bool
	done     bool
	failed   error // first failed mutation; poisons the transaction
}

var _ engine.Tx = (*tx)(nil)

// begin checks the transaction can run another statement.
func (t *tx) begin(ctx context.Context) error {
	if t.done {
		return runtime.Aborted(runtime.ErrTransactionClosed, nil)
	}
	if t.failed != nil {
		return runtime.Aborted(runtime.ErrTransactionPoisoned, t.failed)
	}
	if err := ctx.Err(); err != nil {
		return runtime.Aborted(runtime.ErrCancelled, err)
	}
	return nil
}

// beginWrite is begin for mutating statements.
func (t *tx) beginWrite(ctx context.Context) error {
	if err := t.begin(ctx); err != nil {
		return t.fail(err)
	}
	if t.readOnly {
		return t.fail(runtime.Aborted(runtime.ErrReadOnly, nil))
	}
	return nil
}

// fail records err as the poisoning failure and returns it.
func (t *tx) fail(err error) error {
	if t.failed == nil && !t.done {
		t.failed = err
	}
	return err
}

// read returns the visible contents of table.
func (t *tx) read(table string) *tableData {
	if d, ok := t.overlay[table]; ok {
		return d
	}
	return t.base.tables[table]
}

// write returns a private copy of table for modification.
func (t *tx) write(table string) *tableData {
	if d, ok := t.overlay[table]; ok {
		return d
	}
	d := t.base.tables[table].clone()
	t.overlay[table] = d
	return d
}

func (t *tx) table(name string) (*schema.TableMetadata, error) {
	return engine.TableOf(t.engine.graph, name)
}

func (t *tx) Insert(ctx context.Context, table string, row engine.Row) (engine.Row, error) {
	if err := t.beginWrite(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, t.fail(err)
	}

	stored, err := t.insert(meta, row)
	if err != nil {
		t.engine.logger.Debug("insert failed", zap.String("table", table), zap.Error(err))
		return nil, t.fail(err)
	}
	return stored.Clone(), nil
}

func (t *tx) insert(meta *schema.TableMetadata, row engine.Row) (engine.Row, error) {
	full := make(engine.Row, len(meta.Columns))
	for col, v := range row {
		if _, ok := meta.Column(col); !ok {
			return nil, fmt.Errorf("unknown column %s.%s", meta.Name, col)
		}
		full[col] = engine.Normalize(v)
	}
	for _, col := range meta.Columns {
		if v, ok := full[col.Name]; ok && v != nil {
			if col.Identity != nil {
				if n, ok := v.(int64); ok {
					t.engine.observeIdentity(meta.Name, col.Name, n)
				}
			}
			continue
		}
		switch {
		case col.Identity != nil:
			full[col.Name] = t.engine.nextIdentity(meta.Name, col.Name)
		case col.Default != nil:
			v, err := t.defaultValue(col)
			if err != nil {
				return nil, err
			}
			full[col.Name] = v
		default:
			full[col.Name] = nil
		}
	}

	if err := checkNotNull(meta, full); err != nil {
		return nil, err
	}
	data := t.read(meta.Name)
	enc := encodeKey(meta, full)
	if _, dup := data.rows[enc]; dup {
		return nil, runtime.Violation(runtime.ErrDuplicateKey, meta.Name, meta.PrimaryKey.Name,
			engine.KeyOf(meta, full).String())
	}
	if err := checkUnique(meta, data, full, ""); err != nil {
		return nil, err
	}
	for _, fk := range meta.ForeignKeys {
		if err := t.checkReference(meta, fk, full); err != nil {
			return nil, err
		}
	}

	t.write(meta.Name).rows[enc] = full
	return full, nil
}

func (t *tx) Update(ctx context.Context, table string, key engine.Key, set engine.Row) (engine.Row, error) {
	if err := t.beginWrite(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, t.fail(err)
	}
	key, err = engine.CheckKey(meta, key)
	if err != nil {
		return nil, t.fail(err)
	}

	updated, err := t.update(ctx, meta, key, set)
	if err != nil {
		t.engine.logger.Debug("update failed", zap.String("table", table), zap.Stringer("key", key), zap.Error(err))
		return nil, t.fail(err)
	}
	return updated.Clone(), nil
}

func (t *tx) Delete(ctx context.Context, table string, key engine.Key) error {
	if err := t.beginWrite(ctx); err != nil {
		return err
	}
	meta, err := t.table(table)
	if err != nil {
		return t.fail(err)
	}
	key, err = engine.CheckKey(meta, key)
	if err != nil {
		return t.fail(err)
	}

	row, ok := t.read(meta.Name).rows[encodeKey(meta, key)]
	if !ok {
		return t.fail(runtime.NotFound(meta.Name, key))
	}
	if err := t.delete(ctx, meta, row); err != nil {
		t.engine.logger.Debug("delete failed", zap.String("table", table), zap.Stringer("key", key), zap.Error(err))
		return t.fail(err)
	}
	return nil
}

func (t *tx) DeleteWhere(ctx context.Context, table string, conds ...builder.Condition) (int64, error) {
	if err := t.beginWrite(ctx); err != nil {
		return 0, err
	}
	meta, err := t.table(table)
	if err != nil {
		return 0, t.fail(err)
	}

	rows, err := t.scan(meta, conds)
	if err != nil {
		return 0, t.fail(err)
	}
	var n int64
	for _, row := range rows {
		// An earlier cascade in this loop may have removed it already.
		current, ok := t.read(meta.Name).rows[encodeKey(meta, row)]
		if !ok {
			continue
		}
		if err := t.delete(ctx, meta, current); err != nil {
			return 0, t.fail(err)
		}
		n++
	}
	return n, nil
}

func (t *tx) Get(ctx context.Context, table string, key engine.Key) (engine.Row, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, err
	}
	key, err = engine.CheckKey(meta, key)
	if err != nil {
		return nil, err
	}
	row, ok := t.read(meta.Name).rows[encodeKey(meta, key)]
	if !ok {
		return nil, runtime.NotFound(meta.Name, key)
	}
	return row.Clone(), nil
}

func (t *tx) Exists(ctx context.Context, table string, key engine.Key) (bool, error) {
	if err := t.begin(ctx); err != nil {
		return false, err
	}
	meta, err := t.table(table)
	if err != nil {
		return false, err
	}
	key, err = engine.CheckKey(meta, key)
	if err != nil {
		return false, err
	}
	_, ok := t.read(meta.Name).rows[encodeKey(meta, key)]
	return ok, nil
}

func (t *tx) Select(ctx context.Context, table string, q engine.Query) ([]engine.Row, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, err
	}

	rows, err := t.scan(meta, q.Where)
	if err != nil {
		return nil, err
	}
	if err := sortRows(meta, rows, q.OrderBy); err != nil {
		return nil, err
	}

	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			return []engine.Row{}, nil
		}
		rows = rows[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}

	out := make([]engine.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (t *tx) Count(ctx context.Context, table string, conds ...builder.Condition) (int64, error) {
	if err := t.begin(ctx); err != nil {
		return 0, err
	}
	meta, err := t.table(table)
	if err != nil {
		return 0, err
	}
	rows, err := t.scan(meta, conds)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// scan returns the visible rows of meta matching conds, in primary key order.
func (t *tx) scan(meta *schema.TableMetadata, conds []builder.Condition) ([]engine.Row, error) {
	if err := checkConditions(meta, conds); err != nil {
		return nil, err
	}
	data := t.read(meta.Name)
	rows := make([]engine.Row, 0, len(data.rows))
	for _, row := range data.rows {
		ok, err := match(row, conds)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return lessByColumns(rows[i], rows[j], meta.PrimaryKeyColumns())
	})
	return rows, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return runtime.Aborted(runtime.ErrTransactionClosed, nil)
	}
	if t.failed != nil {
		cause := t.failed
		t.finish()
		return runtime.Aborted(runtime.ErrTransactionPoisoned, cause)
	}
	if err := ctx.Err(); err != nil {
		t.finish()
		return runtime.Aborted(runtime.ErrCancelled, err)
	}

	if !t.readOnly && len(t.overlay) > 0 {
		next := &snapshot{tables: make(map[string]*tableData, len(t.base.tables))}
		for name, data := range t.base.tables {
			next.tables[name] = data
		}
		for name, data := range t.overlay {
			next.tables[name] = data
		}
		t.engine.publish(next)
	}
	t.finish()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

// finish closes the transaction and releases the writer token.
func (t *tx) finish() {
	t.done = true
	t.overlay = nil
	if !t.readOnly {
		t.engine.releaseWriter()
	}
}

// step runs the fault hook and the cancellation check before a cascade step.
func (t *tx) step(ctx context.Context, s Step) error {
	if err := ctx.Err(); err != nil {
		return runtime.Aborted(runtime.ErrCancelled, err)
	}
	if t.engine.fault != nil {
		if err := t.engine.fault(s); err != nil {
			return runtime.Aborted(nil, fmt.Errorf("cascade %s on %s: %w", s.Op, s.Table, err))
		}
	}
	return nil
}
