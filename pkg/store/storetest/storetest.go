// Package storetest is the behavioural suite every engine must pass when
// driven through the store. Engines plug in with NewEngine; the suite seeds
// its own data and checks referential integrity after every test.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/integrity"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/store"
)

// Epoch is the first instant of a Clock.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock advances one second per reading, starting after Epoch.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now advances the clock and returns the new time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// Slugs of the seeded articles.
const (
	Dragon = "how-to-train-your-dragon"
	GoPost = "jane-writes-go"
)

// Suite runs the store against the engine NewEngine returns.
type Suite struct {
	suite.Suite

	// NewEngine returns an engine over an empty database. It is called
	// before every test.
	NewEngine func(t *testing.T) engine.Engine

	Engine engine.Engine
	Store  *store.Store
	Clock  *Clock

	ctx context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.Clock = NewClock()
	s.Engine = s.NewEngine(s.T())

	st, err := store.New(s.Engine, store.WithClock(s.Clock.Now))
	s.Require().NoError(err)
	s.Store = st
}

func (s *Suite) TearDownTest() {
	violations, err := integrity.Check(s.ctx, s.Engine)
	s.Require().NoError(err)
	s.Empty(violations, "dangling references")
	s.Require().NoError(s.Engine.Close())
}

// Seed stores three users, two articles and the follows, favorites,
// tags and comments between them:
//
//	jake writes Dragon (tags dragons, training), jane writes GoPost (tag go)
//	jake follows jane, bob follows jake
//	jane and bob favorite Dragon
//	jane comments on Dragon, jake comments on GoPost
func (s *Suite) Seed() {
	bio := "I work at statefarm"
	for _, u := range []models.User{
		{Username: "jake", Email: "jake@jake.jake", Password: "hash-jake", Bio: &bio},
		{Username: "jane", Email: "jane@jane.jane", Password: "hash-jane"},
		{Username: "bob", Email: "bob@bob.bob", Password: "hash-bob"},
	} {
		_, err := s.Store.CreateUser(s.ctx, u)
		s.Require().NoError(err)
	}

	_, err := s.Store.CreateArticle(s.ctx, models.Article{
		Title: "How to train your dragon", Description: "Ever wonder how?",
		Body: "You have to believe", Author: "jake",
	}, []string{"training", "dragons"})
	s.Require().NoError(err)
	_, err = s.Store.CreateArticle(s.ctx, models.Article{
		Title: "Jane writes Go", Description: "Notes", Body: "Go is fun", Author: "jane",
	}, []string{"go"})
	s.Require().NoError(err)

	s.Require().NoError(s.Store.Follow(s.ctx, "jake", "jane"))
	s.Require().NoError(s.Store.Follow(s.ctx, "bob", "jake"))
	s.Require().NoError(s.Store.Favorite(s.ctx, "jane", Dragon))
	s.Require().NoError(s.Store.Favorite(s.ctx, "bob", Dragon))

	_, err = s.Store.AddComment(s.ctx, Dragon, "jane", "Nice dragon")
	s.Require().NoError(err)
	_, err = s.Store.AddComment(s.ctx, GoPost, "jake", "Thanks for this")
	s.Require().NoError(err)
}

// Count returns the number of rows of table matching conds.
func (s *Suite) Count(table string, conds ...builder.Condition) int64 {
	var n int64
	s.Require().NoError(engine.RunInTx(s.ctx, s.Engine, engine.TxOptions{ReadOnly: true}, func(tx engine.Tx) error {
		var err error
		n, err = tx.Count(s.ctx, table, conds...)
		return err
	}))
	return n
}

// References counts the rows, across all tables, whose foreign key to table
// holds value.
func (s *Suite) References(table, value string) int64 {
	var total int64
	for _, t := range s.Engine.Schema().Tables() {
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable != table {
				continue
			}
			total += s.Count(t.Name, builder.Eq(fk.Columns[0], value))
		}
	}
	return total
}

// Context returns the suite's context.
func (s *Suite) Context() context.Context {
	return s.ctx
}
