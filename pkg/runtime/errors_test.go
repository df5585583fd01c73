package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStoreError_Is(t *testing.T) {
	fk := Violation(ErrForeignKeyViolation, "articles", "fk_articles_author_users", "author ghost")
	assert.ErrorIs(t, fk, ErrConstraintViolation)
	assert.ErrorIs(t, fk, ErrForeignKeyViolation)
	assert.ErrorIs(t, fk, ErrNotFound, "missing parent is also a not-found")
	assert.NotErrorIs(t, fk, ErrTransactionAborted)

	dup := Violation(ErrDuplicateKey, "users", "users_pkey", "")
	assert.ErrorIs(t, dup, ErrConstraintViolation)
	assert.NotErrorIs(t, dup, ErrNotFound)

	restrict := Violation(ErrRestrictViolation, "users", "", "")
	assert.NotErrorIs(t, restrict, ErrNotFound)

	nf := NotFound("users", "jake")
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.NotErrorIs(t, nf, ErrConstraintViolation)
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", nf)))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestStoreError_Message(t *testing.T) {
	err := Violation(ErrDuplicateKey, "users", "users_email_key", "email taken")
	assert.Equal(t, "constraint violation: duplicate key value (table users, constraint users_email_key): email taken", err.Error())
	assert.Equal(t, "constraint_violation", err.Kind.String())
}

func TestAborted_Unwraps(t *testing.T) {
	err := Aborted(ErrCancelled, context.Canceled)
	assert.ErrorIs(t, err, ErrTransactionAborted)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromPgError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		reason error
	}{
		{"unique", &pgconn.PgError{Code: "23505", TableName: "users"}, ErrConstraintViolation, ErrDuplicateKey},
		{"missing parent", &pgconn.PgError{Code: "23503", Detail: `Key (author)=(x) is not present in table "users".`}, ErrNotFound, ErrForeignKeyViolation},
		{"still referenced", &pgconn.PgError{Code: "23503", Detail: `Key (username)=(x) is still referenced from table "articles".`}, ErrConstraintViolation, ErrRestrictViolation},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "email"}, ErrConstraintViolation, ErrNotNullViolation},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrTransactionAborted, ErrSerialization},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrTransactionAborted, ErrSerialization},
		{"failed tx", &pgconn.PgError{Code: "25P02"}, ErrTransactionAborted, ErrTransactionPoisoned},
		{"cancelled", fmt.Errorf("query: %w", context.Canceled), ErrTransactionAborted, ErrCancelled},
		{"no rows", pgx.ErrNoRows, ErrNotFound, pgx.ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPgError(tt.err, "articles")
			assert.ErrorIs(t, got, tt.kind)
			assert.ErrorIs(t, got, tt.reason)
		})
	}

	assert.Nil(t, FromPgError(nil, "x"))
	plain := errors.New("boom")
	assert.Same(t, plain, FromPgError(plain, "x"))
	se := NotFound("users", "a")
	assert.Same(t, se, FromPgError(se, "x"))
}

func TestConfig_ConnString(t *testing.T) {
	assert.Equal(t, "postgres://a@b/c", (&Config{URL: "postgres://a@b/c", Host: "ignored"}).ConnString())
	assert.Equal(t,
		"host=localhost port=5432 user=conduit password= dbname=conduit sslmode=prefer",
		(&Config{Host: "localhost", User: "conduit", Database: "conduit"}).ConnString())
}
