package engine_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/engine/memory"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
	"github.com/marshallshelly/conduit/pkg/schema"
)

func tableFor(t *testing.T, model any) *schema.TableMetadata {
	t.Helper()
	table, err := schema.NewParser().Parse(reflect.TypeOf(model))
	require.NoError(t, err)
	return table
}

func TestNormalize(t *testing.T) {
	s := "x"
	var nilStr *string
	ts := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.FixedZone("X", 3600))

	assert.Equal(t, "x", engine.Normalize(&s))
	assert.Nil(t, engine.Normalize(nilStr))
	assert.Equal(t, int64(7), engine.Normalize(7))
	assert.Equal(t, int64(7), engine.Normalize(int32(7)))
	assert.Equal(t, time.Date(2024, 1, 2, 2, 4, 5, 123456000, time.UTC), engine.Normalize(ts))

	type handle string
	assert.Equal(t, "h", engine.Normalize(handle("h")))
}

func TestCompare(t *testing.T) {
	c, ok := engine.Compare("a", "b")
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = engine.Compare(nil, "b")
	assert.True(t, ok)
	assert.Equal(t, 1, c, "NULL sorts last")

	c, ok = engine.Compare(int64(2), 1.5)
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = engine.Compare("a", int64(1))
	assert.False(t, ok)

	assert.False(t, engine.Equal(nil, nil), "NULL never equals NULL")
	assert.True(t, engine.Equal(int64(3), int64(3)))
}

func TestRowFromStruct_RoundTrip(t *testing.T) {
	table := tableFor(t, models.Article{})
	updated := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	row, err := engine.RowFromStruct(table, models.Article{
		Slug: "s", Title: "t", Description: "d", Body: "b", Author: "jake", UpdatedAt: &updated,
	})
	require.NoError(t, err)
	_, hasCreated := row["created_at"]
	assert.False(t, hasCreated, "zero column with a default is left to the engine")
	assert.Equal(t, updated, row["updated_at"])

	row["created_at"] = updated
	var got models.Article
	require.NoError(t, engine.ScanStruct(table, row, &got))
	assert.Equal(t, "s", got.Slug)
	assert.Equal(t, updated, got.CreatedAt)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, updated, *got.UpdatedAt)

	row["updated_at"] = nil
	require.NoError(t, engine.ScanStruct(table, row, &got))
	assert.Nil(t, got.UpdatedAt)
}

func TestRowFromStruct_Errors(t *testing.T) {
	table := tableFor(t, models.User{})
	_, err := engine.RowFromStruct(table, 42)
	assert.Error(t, err)
	_, err = engine.RowFromStruct(table, (*models.User)(nil))
	assert.Error(t, err)

	var u models.User
	assert.Error(t, engine.ScanStruct(table, engine.Row{"username": int64(1)}, &u))
	assert.Error(t, engine.ScanStruct(table, engine.Row{}, u))
}

func TestCheckKey(t *testing.T) {
	table := tableFor(t, models.Follow{})

	key, err := engine.CheckKey(table, engine.Key{"follower": "a", "followed": "b"})
	require.NoError(t, err)
	assert.Equal(t, "followed=b, follower=a", key.String())

	_, err = engine.CheckKey(table, engine.Key{"follower": "a"})
	assert.ErrorIs(t, err, runtime.ErrConstraintViolation)
	assert.ErrorIs(t, err, runtime.ErrInvalidKey)
	_, err = engine.CheckKey(table, engine.Key{"follower": "a", "other": "b"})
	assert.ErrorIs(t, err, runtime.ErrInvalidKey)

	assert.Equal(t, engine.Key{"follower": "a", "followed": "b"},
		engine.KeyOf(table, engine.Row{"follower": "a", "followed": "b"}))
}

func TestRunInTx(t *testing.T) {
	g, err := models.Graph()
	require.NoError(t, err)
	e, err := memory.New(g)
	require.NoError(t, err)
	ctx := context.Background()

	insert := func(tx engine.Tx) error {
		_, err := tx.Insert(ctx, models.TableUsers, engine.Row{"username": "a", "email": "a@x", "password": "p"})
		return err
	}
	exists := func() bool {
		var ok bool
		require.NoError(t, engine.RunInTx(ctx, e, engine.TxOptions{ReadOnly: true}, func(tx engine.Tx) error {
			var err error
			ok, err = tx.Exists(ctx, models.TableUsers, engine.Key{"username": "a"})
			return err
		}))
		return ok
	}

	boom := errors.New("boom")
	err = engine.RunInTx(ctx, e, engine.TxOptions{}, func(tx engine.Tx) error {
		require.NoError(t, insert(tx))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, exists())

	assert.Panics(t, func() {
		_ = engine.RunInTx(ctx, e, engine.TxOptions{}, func(tx engine.Tx) error {
			require.NoError(t, insert(tx))
			panic("bad")
		})
	})
	assert.False(t, exists())

	require.NoError(t, engine.RunInTx(ctx, e, engine.TxOptions{}, insert))
	assert.True(t, exists())
}

func TestEncodeValues(t *testing.T) {
	cols := []string{"tag", "article"}

	a := engine.EncodeValues(engine.Row{"tag": "x", "article": "a\x00string:1"}, cols)
	b := engine.EncodeValues(engine.Row{"tag": "x\x00string:a", "article": "1"}, cols)
	assert.NotEqual(t, a, b)

	c := engine.EncodeValues(engine.Row{"tag": "x,string:\"a\"", "article": "b"}, cols)
	d := engine.EncodeValues(engine.Row{"tag": "x", "article": "a\",string:\"b"}, cols)
	assert.NotEqual(t, c, d)

	assert.NotEqual(t,
		engine.EncodeValues(engine.Row{"id": int64(1)}, []string{"id"}),
		engine.EncodeValues(engine.Row{"id": "1"}, []string{"id"}), "values of different types differ")
	assert.Equal(t,
		engine.EncodeValues(engine.Row{"tag": "go", "article": "p"}, cols),
		engine.EncodeValues(engine.Key{"article": "p", "tag": "go"}, cols))
}
