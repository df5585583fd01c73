package store

import (
	"context"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
)

// newestFirst orders feeds. The engine breaks ties by slug.
var newestFirst = []builder.OrderBy{{Column: "created_at", Direction: builder.Desc}}

// GlobalFeed pages every article, newest first.
func (s *Store) GlobalFeed(ctx context.Context, opts models.FeedOptions) (models.Feed, error) {
	return s.feed(ctx, "global_feed", opts, func(context.Context, engine.Tx) ([]builder.Condition, error) {
		return nil, nil
	})
}

// AuthorFeed pages the articles written by author.
func (s *Store) AuthorFeed(ctx context.Context, author string, opts models.FeedOptions) (models.Feed, error) {
	return s.feed(ctx, "author_feed", opts, func(context.Context, engine.Tx) ([]builder.Condition, error) {
		return []builder.Condition{builder.Eq("author", author)}, nil
	})
}

// FollowingFeed pages the articles written by the users user follows.
func (s *Store) FollowingFeed(ctx context.Context, user string, opts models.FeedOptions) (models.Feed, error) {
	return s.feed(ctx, "following_feed", opts, func(ctx context.Context, tx engine.Tx) ([]builder.Condition, error) {
		return s.via(ctx, tx, models.TableFollows, builder.Eq("follower", user), "followed", "author")
	})
}

// FavoritedFeed pages the articles user favorited.
func (s *Store) FavoritedFeed(ctx context.Context, user string, opts models.FeedOptions) (models.Feed, error) {
	return s.feed(ctx, "favorited_feed", opts, func(ctx context.Context, tx engine.Tx) ([]builder.Condition, error) {
		return s.via(ctx, tx, models.TableFavorites, builder.Eq("user", user), "article", "slug")
	})
}

// TagFeed pages the articles labelled tag.
func (s *Store) TagFeed(ctx context.Context, tag string, opts models.FeedOptions) (models.Feed, error) {
	return s.feed(ctx, "tag_feed", opts, func(ctx context.Context, tx engine.Tx) ([]builder.Condition, error) {
		return s.via(ctx, tx, models.TableTags, builder.Eq("tag", tag), "article", "slug")
	})
}

// via selects the join rows of table matching cond and returns a condition
// on articles.target IN the values of their column col.
func (s *Store) via(ctx context.Context, tx engine.Tx, table string, cond builder.Condition, col, target string) ([]builder.Condition, error) {
	rows, err := tx.Select(ctx, table, engine.Query{Where: []builder.Condition{cond}})
	if err != nil {
		return nil, err
	}
	return []builder.Condition{builder.In(target, anys(columnValues[string](rows, col))...)}, nil
}

// feed runs one page of a feed. filter builds the article conditions inside
// the transaction so the page and its count see the same snapshot.
func (s *Store) feed(ctx context.Context, op string, opts models.FeedOptions,
	filter func(context.Context, engine.Tx) ([]builder.Condition, error)) (models.Feed, error) {
	opts = opts.Normalized()

	feed := models.Feed{Articles: []models.ArticleView{}}
	err := s.read(ctx, op, func(tx engine.Tx) error {
		conds, err := filter(ctx, tx)
		if err != nil {
			return err
		}
		feed.Count, err = tx.Count(ctx, models.TableArticles, conds...)
		if err != nil {
			return err
		}
		rows, err := tx.Select(ctx, models.TableArticles, engine.Query{
			Where:   conds,
			OrderBy: newestFirst,
			Limit:   opts.Limit,
			Offset:  opts.Offset,
		})
		if err != nil {
			return err
		}
		articles, err := scanAll[models.Article](s, models.TableArticles, rows)
		if err != nil {
			return err
		}
		feed.Articles, err = s.views(ctx, tx, articles, opts.Viewer)
		return err
	})
	return feed, err
}
