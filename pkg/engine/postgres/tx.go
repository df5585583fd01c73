package postgres

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

type tx struct {
	engine   *Engine
	tx       pgx.Tx
	readOnly bool
	done     bool
	failed   error
}

var _ engine.Tx = (*tx)(nil)

func (t *tx) begin(ctx context.Context) error {
	if t.done {
		return runtime.Aborted(runtime.ErrTransactionClosed, nil)
	}
	if t.failed != nil {
		return runtime.Aborted(runtime.ErrTransactionPoisoned, t.failed)
	}
	if err := ctx.Err(); err != nil {
		return t.fail(runtime.Aborted(runtime.ErrCancelled, err))
	}
	return nil
}

func (t *tx) beginWrite(ctx context.Context) error {
	if err := t.begin(ctx); err != nil {
		return err
	}
	if t.readOnly {
		return t.fail(runtime.Aborted(runtime.ErrReadOnly, nil))
	}
	return nil
}

// fail poisons the transaction. PostgreSQL rejects every statement after
// an error until rollback, so the first failure is kept as the cause.
func (t *tx) fail(err error) error {
	if t.failed == nil && !t.done {
		t.failed = err
	}
	return err
}

// failDB classifies a database error and poisons the transaction.
func (t *tx) failDB(err error, table string) error {
	return t.fail(runtime.FromPgError(err, table))
}

// failRead classifies a read error. Only errors raised by the server or by
// cancellation poison the transaction; a statement that could not be built
// never reached it.
func (t *tx) failRead(err error, table string) error {
	classified := runtime.FromPgError(err, table)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || runtime.KindOf(classified) == runtime.KindTransactionAborted {
		return t.fail(classified)
	}
	return classified
}

func (t *tx) table(name string) (*schema.TableMetadata, error) {
	return engine.TableOf(t.engine.graph, name)
}

// query runs q and collects every returned row, normalised.
func (t *tx) query(ctx context.Context, q builder.Query) ([]engine.Row, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	t.engine.logger.Debug("query", zap.String("sql", sql), zap.Int("args", len(args)))

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Row, len(maps))
	for i, m := range maps {
		row := make(engine.Row, len(m))
		for col, v := range m {
			row[col] = engine.Normalize(v)
		}
		out[i] = row
	}
	return out, nil
}

func (t *tx) exec(ctx context.Context, q builder.Query) (int64, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	t.engine.logger.Debug("exec", zap.String("sql", sql), zap.Int("args", len(args)))

	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *tx) scalar(ctx context.Context, q builder.Query, dest any) error {
	sql, args, err := q.ToSQL()
	if err != nil {
		return err
	}
	t.engine.logger.Debug("query", zap.String("sql", sql), zap.Int("args", len(args)))
	return t.tx.QueryRow(ctx, sql, args...).Scan(dest)
}

func (t *tx) Insert(ctx context.Context, table string, row engine.Row) (engine.Row, error) {
	if err := t.beginWrite(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, t.fail(err)
	}

	values := make(map[string]any, len(row))
	for col, v := range row {
		values[col] = engine.Normalize(v)
	}
	rows, err := t.query(ctx, builder.Insert(meta).Values(values).Returning("*"))
	if err != nil {
		return nil, t.failDB(err, table)
	}
	return rows[0], nil
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
	if len(set) == 0 {
		return t.Get(ctx, table, key)
	}

	values := make(map[string]any, len(set))
	for col, v := range set {
		values[col] = engine.Normalize(v)
	}
	rows, err := t.query(ctx, builder.Update(meta).SetMap(values).
		Where(builder.KeyConditions(key)...).Returning("*"))
	if err != nil {
		return nil, t.failDB(err, table)
	}
	if len(rows) == 0 {
		return nil, t.fail(runtime.NotFound(table, key))
	}
	return rows[0], nil
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

	n, err := t.exec(ctx, builder.Delete(meta).Where(builder.KeyConditions(key)...))
	if err != nil {
		return t.failDB(err, table)
	}
	if n == 0 {
		return t.fail(runtime.NotFound(table, key))
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
	n, err := t.exec(ctx, builder.Delete(meta).Where(conds...))
	if err != nil {
		return 0, t.failDB(err, table)
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

	rows, err := t.query(ctx, builder.Select(meta).Where(builder.KeyConditions(key)...))
	if err != nil {
		return nil, t.failRead(err, table)
	}
	if len(rows) == 0 {
		return nil, runtime.NotFound(table, key)
	}
	return rows[0], nil
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

	var found bool
	if err := t.scalar(ctx, builder.Exists(meta).Where(builder.KeyConditions(key)...), &found); err != nil {
		return false, t.failRead(err, table)
	}
	return found, nil
}

func (t *tx) Select(ctx context.Context, table string, q engine.Query) ([]engine.Row, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}
	meta, err := t.table(table)
	if err != nil {
		return nil, err
	}

	sq := builder.Select(meta).Where(q.Where...).OrderBy(totalOrder(meta, q.OrderBy)...)
	if q.Limit > 0 {
		sq.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sq.Offset(q.Offset)
	}
	rows, err := t.query(ctx, sq)
	if err != nil {
		return nil, t.failRead(err, table)
	}
	return rows, nil
}

func (t *tx) Count(ctx context.Context, table string, conds ...builder.Condition) (int64, error) {
	if err := t.begin(ctx); err != nil {
		return 0, err
	}
	meta, err := t.table(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := t.scalar(ctx, builder.Count(meta).Where(conds...), &n); err != nil {
		return 0, t.failRead(err, table)
	}
	return n, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return runtime.Aborted(runtime.ErrTransactionClosed, nil)
	}
	t.done = true
	if t.failed != nil {
		_ = t.tx.Rollback(context.WithoutCancel(ctx))
		return runtime.Aborted(runtime.ErrTransactionPoisoned, t.failed)
	}

	if err := t.tx.Commit(ctx); err != nil {
		_ = t.tx.Rollback(context.WithoutCancel(ctx))
		if errors.Is(err, pgx.ErrTxCommitRollback) {
			return runtime.Aborted(runtime.ErrTransactionPoisoned, err)
		}
		return runtime.FromPgError(err, "")
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return runtime.FromPgError(err, "")
	}
	return nil
}

// totalOrder appends the primary key columns not already ordered on, so
// pagination is stable.
func totalOrder(meta *schema.TableMetadata, orders []builder.OrderBy) []builder.OrderBy {
	out := slices.Clone(orders)
	for _, col := range meta.PrimaryKeyColumns() {
		if !slices.ContainsFunc(orders, func(o builder.OrderBy) bool { return o.Column == col }) {
			out = append(out, builder.OrderBy{Column: col, Direction: builder.Asc})
		}
	}
	return out
}
