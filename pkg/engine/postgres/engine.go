// Package postgres is the storage engine over PostgreSQL. Key, unique,
// not-null and reference constraints and the ON DELETE / ON UPDATE cascades
// are native, created by the migration planner from the same schema graph.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs transactions on a connection pool.
type Engine struct {
	db     *runtime.DB
	graph  *schema.Graph
	logger *zap.Logger
	owned  bool // Close closes db
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine over db. The caller keeps ownership of db.
func New(db *runtime.DB, graph *schema.Graph, opts ...Option) (*Engine, error) {
	if db == nil || db.Pool() == nil {
		return nil, runtime.ErrNoConnection
	}
	for _, t := range graph.Tables() {
		if len(t.PrimaryKeyColumns()) == 0 {
			return nil, fmt.Errorf("table %s: %w", t.Name, runtime.ErrNoPrimaryKey)
		}
	}

	e := &Engine{db: db, graph: graph, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Open connects to the database described by config and returns an engine
// that owns the pool.
func Open(ctx context.Context, config *runtime.Config, graph *schema.Graph, opts ...Option) (*Engine, error) {
	db, err := runtime.Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	e, err := New(db, graph, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	e.owned = true
	return e, nil
}

// Schema returns the graph the engine was built for.
func (e *Engine) Schema() *schema.Graph {
	return e.graph
}

// DB returns the underlying connection pool wrapper.
func (e *Engine) DB() *runtime.DB {
	return e.db
}

// Begin opens a transaction. Read-only transactions run at REPEATABLE READ
// so every statement sees the same snapshot.
func (e *Engine) Begin(ctx context.Context, opts engine.TxOptions) (engine.Tx, error) {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
		txOpts.IsoLevel = pgx.RepeatableRead
	}

	ptx, err := e.db.BeginTx(ctx, txOpts)
	if err != nil {
		if errors.Is(err, runtime.ErrNoConnection) {
			return nil, err
		}
		return nil, runtime.FromPgError(err, "")
	}
	return &tx{engine: e, tx: ptx, readOnly: opts.ReadOnly}, nil
}

// Close closes the pool when the engine opened it.
func (e *Engine) Close() error {
	if e.owned {
		e.db.Close()
	}
	return nil
}
