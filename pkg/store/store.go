// Package store is the typed facade the platform's collaborators use. Every
// method is one transaction on the underlying engine, so a caller never
// observes half of a cascade and a failure leaves nothing behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements the platform's persistence operations on an engine.
type Store struct {
	engine engine.Engine
	logger *zap.Logger
	now    func() time.Time
	tables map[string]*schema.TableMetadata
}

// New creates a store on e. The engine's schema must contain every model table.
func New(e engine.Engine, opts ...Option) (*Store, error) {
	s := &Store{
		engine: e,
		logger: zap.NewNop(),
		now:    time.Now,
		tables: make(map[string]*schema.TableMetadata),
	}
	for _, opt := range opts {
		opt(s)
	}

	g := e.Schema()
	for _, name := range []string{
		models.TableUsers, models.TableArticles, models.TableComments,
		models.TableTags, models.TableFollows, models.TableFavorites,
	} {
		t, err := engine.TableOf(g, name)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		s.tables[name] = t
	}
	return s, nil
}

// Engine returns the engine the store runs on.
func (s *Store) Engine() engine.Engine {
	return s.engine
}

// Exists reports whether table has a row with key.
func (s *Store) Exists(ctx context.Context, table string, key engine.Key) (bool, error) {
	var found bool
	err := s.read(ctx, "exists", func(tx engine.Tx) error {
		var err error
		found, err = tx.Exists(ctx, table, key)
		return err
	})
	return found, err
}

func (s *Store) write(ctx context.Context, op string, fn func(engine.Tx) error) error {
	return s.run(ctx, op, engine.TxOptions{}, fn)
}

func (s *Store) read(ctx context.Context, op string, fn func(engine.Tx) error) error {
	return s.run(ctx, op, engine.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, op string, opts engine.TxOptions, fn func(engine.Tx) error) error {
	start := time.Now()
	err := engine.RunInTx(ctx, s.engine, opts, fn)
	if err != nil {
		level := zapcore.WarnLevel
		if runtime.KindOf(err) == runtime.KindNotFound && !errors.Is(err, runtime.ErrUnknownTable) {
			level = zapcore.DebugLevel
		}
		if ce := s.logger.Check(level, "store operation failed"); ce != nil {
			ce.Write(zap.String("op", op), zap.Stringer("kind", runtime.KindOf(err)), zap.Error(err))
		}
		return err
	}
	s.logger.Debug("store operation", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// timestamp returns the store clock in the precision the engines keep.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) insert(ctx context.Context, tx engine.Tx, table string, model any) (engine.Row, error) {
	row, err := engine.RowFromStruct(s.tables[table], model)
	if err != nil {
		return nil, err
	}
	return tx.Insert(ctx, table, row)
}

func (s *Store) get(ctx context.Context, tx engine.Tx, table string, key engine.Key, dest any) error {
	row, err := tx.Get(ctx, table, key)
	if err != nil {
		return err
	}
	return engine.ScanStruct(s.tables[table], row, dest)
}

// rename changes the primary key of one row. The engine carries the new
// value to every referencing row.
func (s *Store) rename(ctx context.Context, tx engine.Tx, table, column, from, to string) error {
	if to == "" {
		return emptyKey(table, column)
	}
	if from == to {
		_, err := tx.Get(ctx, table, engine.Key{column: from})
		return err
	}
	_, err := tx.Update(ctx, table, engine.Key{column: from}, engine.Row{column: to})
	return err
}

func emptyKey(table, column string) error {
	return runtime.Violation(runtime.ErrEmptyKey, table, column, column+" must not be empty")
}

func scanAll[T any](s *Store, table string, rows []engine.Row) ([]T, error) {
	out := make([]T, len(rows))
	for i, row := range rows {
		if err := engine.ScanStruct(s.tables[table], row, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func columnValues[T any](rows []engine.Row, col string) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[col].(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func anys[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func notFoundBy(table, column string, value any) error {
	return runtime.NotFound(table, engine.Key{column: value})
}
