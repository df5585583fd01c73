package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/conduit/pkg/schema"
)

func TestGraph_Tables(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 6)
	assert.Equal(t, TableUsers, order[0])
	assert.Equal(t, TableArticles, order[1])
	assert.ElementsMatch(t, []string{TableComments, TableFavorites, TableFollows, TableTags}, order[2:])
}

func TestGraph_ForeignKeysCascade(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	count := 0
	for _, table := range g.Tables() {
		for _, fk := range table.ForeignKeys {
			count++
			assert.Equal(t, schema.Cascade, fk.OnDelete, fk.Name)
			assert.Equal(t, schema.Cascade, fk.OnUpdate, fk.Name)
		}
	}
	assert.Equal(t, 8, count)

	var fromUsers []string
	for _, ref := range g.Referencing(TableUsers) {
		fromUsers = append(fromUsers, ref.Table.Name+"."+ref.ForeignKey.Columns[0])
	}
	assert.ElementsMatch(t, []string{
		"articles.author", "comments.user", "follows.follower", "follows.followed", "favorites.user",
	}, fromUsers)

	var fromArticles []string
	for _, ref := range g.Referencing(TableArticles) {
		fromArticles = append(fromArticles, ref.Table.Name)
	}
	assert.ElementsMatch(t, []string{TableComments, TableTags, TableFavorites}, fromArticles)
}

func TestGraph_Keys(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	keys := map[string][]string{
		TableUsers:     {"username"},
		TableArticles:  {"slug"},
		TableComments:  {"id"},
		TableTags:      {"tag", "article"},
		TableFollows:   {"follower", "followed"},
		TableFavorites: {"user", "article"},
	}
	for name, want := range keys {
		table, ok := g.Table(name)
		require.True(t, ok, name)
		assert.Equal(t, want, table.PrimaryKeyColumns(), name)
	}

	users, _ := g.Table(TableUsers)
	email, _ := users.Column("email")
	assert.True(t, email.Unique)
	assert.False(t, email.Nullable)
	bio, _ := users.Column("bio")
	assert.True(t, bio.Nullable)

	comments, _ := g.Table(TableComments)
	id, _ := comments.Column("id")
	require.NotNil(t, id.Identity)
	assert.Equal(t, schema.IdentityByDefault, id.Identity.Generation)
}

func TestSlugFromTitle(t *testing.T) {
	cases := map[string]string{
		"Hello World":        "hello-world",
		"  Leading spaces":   "leading-spaces",
		"Trailing ":          "trailing-x",
		"What's up, Doc?":    "whats-up-doc",
		"Ünïcödé title":      "ncd-title",
		"already-hyphenated": "alreadyhyphenated",
		"two  spaces":        "two--spaces",
		"!!!":                "",
		"Go 1.22 release":    "go-122-release",
	}
	for title, want := range cases {
		assert.Equal(t, want, SlugFromTitle(title), title)
	}
}

func TestFeedOptions_Normalized(t *testing.T) {
	assert.Equal(t, FeedOptions{Limit: DefaultFeedLimit}, FeedOptions{}.Normalized())
	assert.Equal(t, MaxFeedLimit, FeedOptions{Limit: 1000}.Normalized().Limit)
	assert.Equal(t, 0, FeedOptions{Offset: -5, Limit: 3}.Normalized().Offset)
	assert.Equal(t, "jake", FeedOptions{Viewer: "jake"}.Normalized().Viewer)
}
