package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marshallshelly/conduit/pkg/runtime"
)

// DefaultLockID is the advisory lock key held while migrating.
const DefaultLockID int64 = 7_236_118_071

// Executor executes and tracks database migrations.
type Executor struct {
	pool   *pgxpool.Pool
	lockID int64
	logger *zap.Logger
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: DefaultLockID,
		logger: zap.NewNop(),
	}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// WithLogger sets the logger.
func (e *Executor) WithLogger(logger *zap.Logger) *Executor {
	e.logger = logger
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMPTZ,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// withLock runs fn on one connection holding the advisory lock, so
// concurrent migrators queue instead of interleaving.
func (e *Executor) withLock(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", e.lockID); err != nil {
			e.logger.Warn("failed to release migration lock", zap.Error(err))
		}
	}()
	return fn(conn)
}

// TryLock reports whether the advisory lock is free right now. The lock is
// released again before returning.
func (e *Executor) TryLock(ctx context.Context) (bool, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", e.lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to try migration lock: %w", err)
	}
	if acquired {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", e.lockID)
	}
	return acquired, nil
}

// GetAppliedMigrations returns all migrations that have been applied.
func (e *Executor) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, e.pool, "WHERE status = 'applied'")
}

// GetAllMigrations returns all migration records.
func (e *Executor) GetAllMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, e.pool, "")
}

func (e *Executor) records(ctx context.Context, q runtime.Querier, where string) ([]MigrationRecord, error) {
	rows, err := q.Query(ctx, "SELECT version, name, status, applied_at, error FROM schema_migrations "+
		where+" ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MigrationRecord, error) {
		var r MigrationRecord
		err := row.Scan(&r.Version, &r.Name, &r.Status, &r.AppliedAt, &r.Error)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration record: %w", err)
	}
	return records, nil
}

func isApplied(ctx context.Context, q runtime.Querier, version string) (bool, error) {
	var applied bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1 AND status = 'applied')",
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return applied, nil
}

// IsMigrationApplied checks if a specific migration has been applied.
func (e *Executor) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	return isApplied(ctx, e.pool, version)
}

// Apply executes a migration's up SQL in one transaction.
func (e *Executor) Apply(ctx context.Context, m Migration, dryRun bool) error {
	return e.withLock(ctx, func(conn *pgxpool.Conn) error {
		return e.apply(ctx, conn, m, dryRun)
	})
}

func (e *Executor) apply(ctx context.Context, conn *pgxpool.Conn, m Migration, dryRun bool) error {
	applied, err := isApplied(ctx, conn, m.Version)
	if err != nil {
		return err
	}
	if applied {
		return fmt.Errorf("migration %s is already applied", m.Version)
	}
	if dryRun {
		e.logger.Info("would apply migration", zap.String("version", m.Version), zap.String("name", m.Name))
		return nil
	}

	err = e.inTx(ctx, conn, func(tx pgx.Tx) error {
		if err := execAll(ctx, tx, m.UpSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, applied_at)
			VALUES ($1, $2, 'applied', $3)
			ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = $3, error = NULL`,
			m.Version, m.Name, time.Now().UTC())
		return err
	})
	if err != nil {
		// The transaction is gone; record the failure on its own.
		_, recErr := conn.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, error)
			VALUES ($1, $2, 'failed', $3)
			ON CONFLICT (version) DO UPDATE SET status = 'failed', error = $3`,
			m.Version, m.Name, err.Error())
		return &runtime.MigrationError{Version: m.Version, Message: "apply failed", Err: errors.Join(err, recErr)}
	}
	e.logger.Info("applied migration", zap.String("version", m.Version), zap.String("name", m.Name))
	return nil
}

// Rollback executes a migration's down SQL in one transaction.
func (e *Executor) Rollback(ctx context.Context, m Migration, dryRun bool) error {
	return e.withLock(ctx, func(conn *pgxpool.Conn) error {
		return e.rollback(ctx, conn, m, dryRun)
	})
}

func (e *Executor) rollback(ctx context.Context, conn *pgxpool.Conn, m Migration, dryRun bool) error {
	applied, err := isApplied(ctx, conn, m.Version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("migration %s is not applied", m.Version)
	}
	if dryRun {
		e.logger.Info("would roll back migration", zap.String("version", m.Version), zap.String("name", m.Name))
		return nil
	}

	err = e.inTx(ctx, conn, func(tx pgx.Tx) error {
		if err := execAll(ctx, tx, m.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
		return err
	})
	if err != nil {
		return &runtime.MigrationError{Version: m.Version, Message: "rollback failed", Err: err}
	}
	e.logger.Info("rolled back migration", zap.String("version", m.Version), zap.String("name", m.Name))
	return nil
}

// ApplyAll applies pending migrations in order. steps > 0 stops after that
// many. It returns the migrations applied.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration, steps int, dryRun bool) ([]Migration, error) {
	var done []Migration
	err := e.withLock(ctx, func(conn *pgxpool.Conn) error {
		applied, err := e.records(ctx, conn, "WHERE status = 'applied'")
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(applied))
		for _, r := range applied {
			seen[r.Version] = true
		}

		for _, m := range migrations {
			if seen[m.Version] {
				continue
			}
			if steps > 0 && len(done) == steps {
				break
			}
			if err := e.apply(ctx, conn, m, dryRun); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
			}
			done = append(done, m)
		}
		return nil
	})
	return done, err
}

// RollbackSteps rolls back the last steps applied migrations, newest first.
func (e *Executor) RollbackSteps(ctx context.Context, migrations []Migration, steps int, dryRun bool) ([]Migration, error) {
	return e.rollbackWhile(ctx, migrations, dryRun, func(_ MigrationRecord, done int) bool {
		return done < steps
	})
}

// RollbackTo rolls back every applied migration newer than targetVersion.
func (e *Executor) RollbackTo(ctx context.Context, targetVersion string, migrations []Migration, dryRun bool) ([]Migration, error) {
	return e.rollbackWhile(ctx, migrations, dryRun, func(r MigrationRecord, _ int) bool {
		return r.Version > targetVersion
	})
}

func (e *Executor) rollbackWhile(ctx context.Context, migrations []Migration, dryRun bool,
	more func(r MigrationRecord, done int) bool) ([]Migration, error) {
	byVersion := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	var done []Migration
	err := e.withLock(ctx, func(conn *pgxpool.Conn) error {
		applied, err := e.records(ctx, conn, "WHERE status = 'applied'")
		if err != nil {
			return err
		}
		for i := len(applied) - 1; i >= 0 && more(applied[i], len(done)); i-- {
			m, ok := byVersion[applied[i].Version]
			if !ok {
				return fmt.Errorf("migration file not found for version %s", applied[i].Version)
			}
			if err := e.rollback(ctx, conn, m, dryRun); err != nil {
				return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
			}
			done = append(done, m)
		}
		return nil
	})
	return done, err
}

// GetStatus returns one record per migration file, pending when untracked.
func (e *Executor) GetStatus(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	tracked, err := e.GetAllMigrations(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(tracked))
	for _, r := range tracked {
		byVersion[r.Version] = r
	}

	records := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		if r, ok := byVersion[m.Version]; ok {
			records = append(records, r)
			continue
		}
		records = append(records, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}
	return records, nil
}

// Validate checks that all migrations in the database have corresponding files.
func (e *Executor) Validate(ctx context.Context, migrations []Migration) error {
	tracked, err := e.GetAllMigrations(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
	}

	var missing []string
	for _, r := range tracked {
		if !known[r.Version] {
			missing = append(missing, r.Version)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing migration files: %v", missing)
	}
	return nil
}

func (e *Executor) inTx(ctx context.Context, conn *pgxpool.Conn, fn func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func execAll(ctx context.Context, tx pgx.Tx, sql string) error {
	for i, stmt := range splitSQL(sql) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// splitSQL splits a script on semicolons after dropping comment lines.
// Statements must not contain semicolons inside string literals.
func splitSQL(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var out []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
