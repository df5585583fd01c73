//go:build integration

package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/marshallshelly/conduit/internal/pgtest"
	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/engine/postgres"
	"github.com/marshallshelly/conduit/pkg/migration"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/store/storetest"
)

func TestPostgresSuite(t *testing.T) {
	ctx := context.Background()
	db := pgtest.Start(t)

	g, err := models.Graph()
	require.NoError(t, err)
	up, _ := migration.NewPlanner().GenerateSchema(g)
	_, err = db.Exec(ctx, up)
	require.NoError(t, err, up)

	tables := make([]string, 0, len(g.Order()))
	for _, name := range g.Order() {
		tables = append(tables, builder.QuoteIdent(name))
	}
	truncate := "TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"

	suite.Run(t, &storetest.Suite{
		NewEngine: func(t *testing.T) engine.Engine {
			_, err := db.Exec(ctx, truncate)
			require.NoError(t, err)
			e, err := postgres.New(db, g)
			require.NoError(t, err)
			return e
		},
	})
}
