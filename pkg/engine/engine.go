// Package engine defines the storage contract the store runs on. An engine
// owns transactions and enforces the schema's key and reference constraints,
// either natively or by cascading itself.
package engine

import (
	"context"
	"fmt"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// TxOptions configures a transaction.
type TxOptions struct {
	// ReadOnly transactions see one committed snapshot and reject writes.
	ReadOnly bool
}

// Query selects rows of one table.
type Query struct {
	Where   []builder.Condition
	OrderBy []builder.OrderBy
	Limit   int // 0 means no limit
	Offset  int
}

// Engine opens transactions over a fixed schema.
type Engine interface {
	Begin(ctx context.Context, opts TxOptions) (Tx, error)
	Schema() *schema.Graph
	Close() error
}

// Tx is one transaction. A failed mutating statement poisons the
// transaction: every later statement and Commit fail with
// runtime.ErrTransactionAborted. Rollback on a closed transaction is a no-op.
type Tx interface {
	// Insert stores row, filling identity and default columns, and returns
	// the stored row.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// Update changes the row addressed by key. When set changes a referenced
	// column every referencing row follows in the same transaction.
	Update(ctx context.Context, table string, key Key, set Row) (Row, error)
	// Delete removes the row addressed by key and, transitively, every row
	// that references it under ON DELETE CASCADE.
	Delete(ctx context.Context, table string, key Key) error
	// DeleteWhere deletes every matching row with cascade and returns how
	// many matched.
	DeleteWhere(ctx context.Context, table string, conds ...builder.Condition) (int64, error)

	Get(ctx context.Context, table string, key Key) (Row, error)
	Exists(ctx context.Context, table string, key Key) (bool, error)
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Count(ctx context.Context, table string, conds ...builder.Condition) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RunInTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise, including on panic.
func RunInTx(ctx context.Context, e Engine, opts TxOptions, fn func(Tx) error) (err error) {
	tx, err := e.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// TableOf looks up table in the engine's schema.
func TableOf(g *schema.Graph, table string) (*schema.TableMetadata, error) {
	t, ok := g.Table(table)
	if !ok {
		return nil, &runtime.StoreError{Kind: runtime.KindNotFound, Reason: runtime.ErrUnknownTable, Table: table}
	}
	if len(t.PrimaryKeyColumns()) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, runtime.ErrNoPrimaryKey)
	}
	return t, nil
}
