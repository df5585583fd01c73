package integrity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/engine/memory"
	"github.com/marshallshelly/conduit/pkg/models"
)

// rowsTx serves fixed table contents, which lets a test hold rows no
// engine would accept.
type rowsTx struct {
	engine.Tx
	tables map[string][]engine.Row
}

func (r rowsTx) Select(_ context.Context, table string, _ engine.Query) ([]engine.Row, error) {
	return r.tables[table], nil
}

func TestVerify_FindsDanglingReferences(t *testing.T) {
	g, err := models.Graph()
	require.NoError(t, err)

	tx := rowsTx{tables: map[string][]engine.Row{
		models.TableUsers: {{"username": "jake"}},
		models.TableArticles: {
			{"slug": "ok", "author": "jake"},
			{"slug": "orphan", "author": "ghost"},
		},
		models.TableFollows: {{"follower": "jake", "followed": "ghost"}},
	}}

	got, err := Verify(context.Background(), tx, g)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.TableArticles, got[0].Table)
	assert.Equal(t, engine.Key{"slug": "orphan"}, got[0].Key)
	assert.Equal(t, models.TableUsers, got[0].Referenced)
	assert.Equal(t, "articles(slug=orphan) fk_articles_author_users -> users(author=ghost) missing", got[0].String())

	assert.Equal(t, models.TableFollows, got[1].Table)
	assert.Equal(t, map[string]any{"followed": "ghost"}, got[1].Values)
}

func TestVerify_SkipsNullReferences(t *testing.T) {
	g, err := models.Graph()
	require.NoError(t, err)

	tx := rowsTx{tables: map[string][]engine.Row{
		models.TableArticles: {{"slug": "s", "author": nil}},
	}}
	got, err := Verify(context.Background(), tx, g)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheck_CleanEngine(t *testing.T) {
	g, err := models.Graph()
	require.NoError(t, err)
	e, err := memory.New(g)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, engine.RunInTx(ctx, e, engine.TxOptions{}, func(tx engine.Tx) error {
		if _, err := tx.Insert(ctx, models.TableUsers, engine.Row{"username": "jake", "email": "j@x", "password": "p"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, models.TableArticles, engine.Row{
			"slug": "s", "title": "t", "description": "d", "body": "b", "author": "jake",
		})
		return err
	}))
	require.NoError(t, engine.RunInTx(ctx, e, engine.TxOptions{}, func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableUsers, engine.Key{"username": "jake"})
	}))

	got, err := Check(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := countRows(ctx, e)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func countRows(ctx context.Context, e engine.Engine) (int64, error) {
	var total int64
	err := engine.RunInTx(ctx, e, engine.TxOptions{ReadOnly: true}, func(tx engine.Tx) error {
		for _, name := range e.Schema().Order() {
			n, err := tx.Count(ctx, name)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}
