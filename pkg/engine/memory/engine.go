// Package memory is an in-process storage engine. It has no native
// constraints: key uniqueness, not-null, reference existence and the
// ON DELETE / ON UPDATE actions are enforced here, driven by the schema graph.
//
// Writers are serialised. Each write transaction works on a copy-on-write
// overlay of the committed snapshot and publishes it atomically on commit,
// so readers never observe a partial cascade.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// StepOp names a row-level action taken while cascading.
type StepOp string

const (
	StepDelete   StepOp = "delete"
	StepRetarget StepOp = "retarget"
	StepSetNull  StepOp = "set_null"
)

// Step describes one row-level cascade action, reported to the fault hook
// before it is applied.
type Step struct {
	Op         StepOp
	Table      string // table of the row being changed
	Key        engine.Key
	ForeignKey string // constraint that caused the step
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the clock used for CURRENT_TIMESTAMP defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithFaultHook installs a hook called before every cascade step. A non-nil
// error aborts the transaction.
func WithFaultHook(hook func(Step) error) Option {
	return func(e *Engine) { e.fault = hook }
}

// Engine is the in-memory engine.
type Engine struct {
	graph  *schema.Graph
	logger *zap.Logger
	now    func() time.Time
	fault  func(Step) error

	writer chan struct{} // one token; held by the open write transaction

	mu        sync.RWMutex
	committed *snapshot

	seqMu sync.Mutex
	seqs  map[string]int64 // table.column -> last identity handed out

	closed atomic.Bool
}

var _ engine.Engine = (*Engine)(nil)

// New creates an empty engine for the tables in graph. Every table must
// have a primary key.
func New(graph *schema.Graph, opts ...Option) (*Engine, error) {
	for _, t := range graph.Tables() {
		if len(t.PrimaryKeyColumns()) == 0 {
			return nil, fmt.Errorf("table %s: %w", t.Name, runtime.ErrNoPrimaryKey)
		}
	}

	e := &Engine{
		graph:     graph,
		logger:    zap.NewNop(),
		now:       time.Now,
		writer:    make(chan struct{}, 1),
		committed: newSnapshot(graph),
		seqs:      make(map[string]int64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schema returns the graph the engine enforces.
func (e *Engine) Schema() *schema.Graph {
	return e.graph
}

// Begin opens a transaction. Write transactions wait for the writer token
// and give up when ctx ends.
func (e *Engine) Begin(ctx context.Context, opts engine.TxOptions) (engine.Tx, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("memory engine: %w", runtime.ErrNoConnection)
	}
	if err := ctx.Err(); err != nil {
		return nil, runtime.Aborted(runtime.ErrCancelled, err)
	}

	if opts.ReadOnly {
		e.mu.RLock()
		base := e.committed
		e.mu.RUnlock()
		return &tx{engine: e, base: base, readOnly: true}, nil
	}

	select {
	case e.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, runtime.Aborted(runtime.ErrCancelled, ctx.Err())
	}

	e.mu.RLock()
	base := e.committed
	e.mu.RUnlock()

	return &tx{engine: e, base: base, overlay: make(map[string]*tableData)}, nil
}

// Close rejects new transactions. Open ones may still finish.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// publish replaces the committed snapshot. Called with the writer token held.
func (e *Engine) publish(next *snapshot) {
	e.mu.Lock()
	e.committed = next
	e.mu.Unlock()
}

func (e *Engine) releaseWriter() {
	<-e.writer
}

// nextIdentity hands out the next value of an identity column. Sequences are
// not transactional: a rolled back insert still consumes its value.
func (e *Engine) nextIdentity(table, column string) int64 {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	name := table + "." + column
	e.seqs[name]++
	return e.seqs[name]
}

// observeIdentity moves a sequence past an explicitly supplied value.
func (e *Engine) observeIdentity(table, column string, v int64) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()
	name := table + "." + column
	if v > e.seqs[name] {
		e.seqs[name] = v
	}
}

// snapshot is an immutable set of table contents. Rows stored in a snapshot
// are never mutated; changes replace them.
type snapshot struct {
	tables map[string]*tableData
}

type tableData struct {
	rows map[string]engine.Row // encoded primary key -> row
}

func newSnapshot(graph *schema.Graph) *snapshot {
	s := &snapshot{tables: make(map[string]*tableData)}
	for _, name := range graph.Order() {
		s.tables[name] = &tableData{rows: make(map[string]engine.Row)}
	}
	return s
}

func (d *tableData) clone() *tableData {
	out := &tableData{rows: make(map[string]engine.Row, len(d.rows))}
	for k, v := range d.rows {
		out.rows[k] = v
	}
	return out
}

// encodeKey builds the map key for a row's primary key. Values are
// normalised so equal keys encode equally, and quoted so no value can
// spill into the next column.
func encodeKey(table *schema.TableMetadata, values map[string]any) string {
	return engine.EncodeValues(values, table.PrimaryKeyColumns())
}
