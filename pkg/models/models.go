// Package models declares the conduit schema as tagged Go structs.
//
// Every key is natural: users are addressed by username, articles by slug.
// All foreign keys cascade on delete and on key change.
package models

import (
	"time"

	"github.com/marshallshelly/conduit/pkg/registry"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// Table names.
const (
	TableUsers     = "users"
	TableArticles  = "articles"
	TableComments  = "comments"
	TableTags      = "tags"
	TableFollows   = "follows"
	TableFavorites = "favorites"
)

func init() {
	schema.RegisterTableName("User", TableUsers)
	schema.RegisterTableName("Article", TableArticles)
	schema.RegisterTableName("Comment", TableComments)
	schema.RegisterTableName("Tag", TableTags)
	schema.RegisterTableName("Follow", TableFollows)
	schema.RegisterTableName("Favorite", TableFavorites)
}

// User is an account. Password holds the hash supplied by the
// authenticating collaborator; the store never sees plain text.
type User struct {
	Username string  `po:"username,primaryKey"`
	Email    string  `po:"email,unique,notNull"`
	Password string  `po:"password,notNull"`
	Bio      *string `po:"bio"`
	Image    *string `po:"image"`
}

// Article is a published post. CreatedAt is assigned by the store when zero.
type Article struct {
	Slug        string     `po:"slug,primaryKey"`
	Title       string     `po:"title,notNull"`
	Description string     `po:"description,notNull"`
	Body        string     `po:"body,notNull"`
	CreatedAt   time.Time  `po:"created_at,notNull,default(CURRENT_TIMESTAMP)"`
	UpdatedAt   *time.Time `po:"updated_at"`
	Author      string     `po:"author,notNull,index,fk(users.username),onDelete(cascade),onUpdate(cascade)"`
}

// Comment belongs to one article and one user. ID is assigned by the store.
type Comment struct {
	ID        int64     `po:"id,primaryKey,bigint,identityByDefault"`
	Body      string    `po:"body,notNull"`
	CreatedAt time.Time `po:"created_at,notNull,default(CURRENT_TIMESTAMP)"`
	Article   string    `po:"article,notNull,index,fk(articles.slug),onDelete(cascade),onUpdate(cascade)"`
	User      string    `po:"user,notNull,index,fk(users.username),onDelete(cascade),onUpdate(cascade)"`
}

// Tag labels an article.
type Tag struct {
	Tag     string `po:"tag,primaryKey"`
	Article string `po:"article,primaryKey,index,fk(articles.slug),onDelete(cascade),onUpdate(cascade)"`
}

// Follow records that Follower follows Followed. Following oneself is allowed.
type Follow struct {
	Follower string `po:"follower,primaryKey,fk(users.username),onDelete(cascade),onUpdate(cascade)"`
	Followed string `po:"followed,primaryKey,index,fk(users.username),onDelete(cascade),onUpdate(cascade)"`
}

// Favorite records that User favorited Article.
type Favorite struct {
	User    string `po:"user,primaryKey,fk(users.username),onDelete(cascade),onUpdate(cascade)"`
	Article string `po:"article,primaryKey,index,fk(articles.slug),onDelete(cascade),onUpdate(cascade)"`
}

// All returns one zero value of every model, parents first.
func All() []any {
	return []any{User{}, Article{}, Comment{}, Tag{}, Follow{}, Favorite{}}
}

// Register adds every model to r.
func Register(r *registry.Registry) error {
	return r.Register(All()...)
}

// Graph parses the models into a fresh registry and returns the
// foreign-key graph.
func Graph() (*schema.Graph, error) {
	r := registry.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r.Graph()
}
