// Package runtime provides the database connection and the error taxonomy
// shared by every storage engine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every engine failure is a StoreError of one kind. A missing
// referenced row also matches ErrNotFound, see StoreError.Is.
var (
	// ErrNotFound is returned when a referenced or addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConstraintViolation is returned when a write would break a key,
	// not-null or reference constraint.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrTransactionAborted is returned when a transaction cannot commit and
	// all of its effects have been discarded.
	ErrTransactionAborted = errors.New("transaction aborted")
)

// Reasons narrow a kind.
var (
	// ErrDuplicateKey is returned when a primary key or unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key names a row that does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrRestrictViolation is returned when a row is still referenced under RESTRICT or NO ACTION.
	ErrRestrictViolation = errors.New("row is still referenced")

	// ErrUnknownTable is returned when a statement names a table outside the schema.
	ErrUnknownTable = errors.New("unknown table")

	// ErrInvalidKey is returned when a key does not name exactly the primary key columns.
	ErrInvalidKey = errors.New("invalid key")

	// ErrEmptyKey is returned when a natural key is the empty string.
	ErrEmptyKey = errors.New("empty key value")

	// ErrNotNullViolation is returned when a required column is missing.
	ErrNotNullViolation = errors.New("null value in required column")

	// ErrTransactionClosed is returned when operating on a committed or rolled back transaction.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrTransactionPoisoned is returned by every statement after one has failed.
	ErrTransactionPoisoned = errors.New("transaction has a failed statement")

	// ErrSerialization is returned when concurrent transactions conflict.
	ErrSerialization = errors.New("serialization failure")

	// ErrCancelled is returned when the context ends before the operation does.
	ErrCancelled = errors.New("operation cancelled")

	// ErrReadOnly is returned when a read-only transaction attempts a write.
	ErrReadOnly = errors.New("read-only transaction")
)

var (
	// ErrInvalidModel is returned when an invalid model is provided.
	ErrInvalidModel = errors.New("invalid model")

	// ErrNoPrimaryKey is returned when a table has no primary key.
	ErrNoPrimaryKey = errors.New("no primary key defined")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// Kind classifies a StoreError.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConstraintViolation
	KindTransactionAborted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindTransactionAborted:
		return "transaction_aborted"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConstraintViolation:
		return ErrConstraintViolation
	case KindTransactionAborted:
		return ErrTransactionAborted
	default:
		return nil
	}
}

// StoreError is the error every engine returns.
type StoreError struct {
	Kind       Kind
	Reason     error  // one of the reason sentinels, or nil
	Table      string // table the statement addressed
	Constraint string // violated constraint, when known
	Detail     string
	Err        error // underlying cause
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	var b strings.Builder
	if kind := e.Kind.sentinel(); kind != nil {
		b.WriteString(kind.Error())
	} else {
		b.WriteString("store error")
	}
	if e.Reason != nil {
		b.WriteString(": ")
		b.WriteString(e.Reason.Error())
	}
	if e.Table != "" {
		fmt.Fprintf(&b, " (table %s", e.Table)
		if e.Constraint != "" {
			fmt.Fprintf(&b, ", constraint %s", e.Constraint)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the kind sentinel and the reason. A missing referenced row is
// both a constraint violation and a not-found.
func (e *StoreError) Is(target error) bool {
	if target == e.Kind.sentinel() {
		return true
	}
	if e.Reason != nil && target == e.Reason {
		return true
	}
	return target == ErrNotFound && e.Reason == ErrForeignKeyViolation
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotFound reports that no row of table has the given key.
func NotFound(table string, key any) *StoreError {
	return &StoreError{Kind: KindNotFound, Table: table, Detail: fmt.Sprintf("key %v", key)}
}

// Violation reports a broken constraint.
func Violation(reason error, table, constraint, detail string) *StoreError {
	return &StoreError{Kind: KindConstraintViolation, Reason: reason, Table: table, Constraint: constraint, Detail: detail}
}

// Aborted reports that the transaction was rolled back because of cause.
func Aborted(reason error, cause error) *StoreError {
	return &StoreError{Kind: KindTransactionAborted, Reason: reason, Err: cause}
}

// KindOf returns the kind of err, or 0 when err is not a StoreError.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// PostgreSQL error codes the engines classify.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgInFailedTransaction  = "25P02"
	pgQueryCanceled        = "57014"
)

// FromPgError converts a pgx error into a StoreError. table names the
// statement's target for errors that do not carry one. Errors that are
// already StoreErrors, or that are not database errors, pass through.
func FromPgError(err error, table string) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &StoreError{Kind: KindNotFound, Table: table, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Aborted(ErrCancelled, err)
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return Aborted(ErrTransactionClosed, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.TableName != "" {
		table = pgErr.TableName
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return &StoreError{Kind: KindConstraintViolation, Reason: ErrDuplicateKey, Table: table,
			Constraint: pgErr.ConstraintName, Detail: pgErr.Detail, Err: err}
	case pgForeignKeyViolation:
		reason := ErrForeignKeyViolation
		if strings.Contains(pgErr.Detail, "still referenced") {
			reason = ErrRestrictViolation
		}
		return &StoreError{Kind: KindConstraintViolation, Reason: reason, Table: table,
			Constraint: pgErr.ConstraintName, Detail: pgErr.Detail, Err: err}
	case pgNotNullViolation:
		return &StoreError{Kind: KindConstraintViolation, Reason: ErrNotNullViolation, Table: table,
			Constraint: pgErr.ColumnName, Detail: pgErr.Detail, Err: err}
	case pgSerializationFailure, pgDeadlockDetected:
		return Aborted(ErrSerialization, err)
	case pgInFailedTransaction:
		return Aborted(ErrTransactionPoisoned, err)
	case pgQueryCanceled:
		return Aborted(ErrCancelled, err)
	}
	return err
}

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// MigrationError represents a migration error.
type MigrationError struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("migration error (version %s): %v", e.Version, e.Err)
	}
	return fmt.Sprintf("migration error (version %s): %s: %v", e.Version, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}
