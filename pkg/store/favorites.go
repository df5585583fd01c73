package store

import (
	"context"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
)

func favoriteKey(user, slug string) engine.Key {
	return engine.Key{"user": user, "article": slug}
}

// Favorite records that user favorited the article. Favoriting twice is a
// duplicate-key violation.
func (s *Store) Favorite(ctx context.Context, user, slug string) error {
	return s.write(ctx, "favorite", func(tx engine.Tx) error {
		_, err := s.insert(ctx, tx, models.TableFavorites, models.Favorite{User: user, Article: slug})
		return err
	})
}

// Unfavorite removes user's favorite of the article.
func (s *Store) Unfavorite(ctx context.Context, user, slug string) error {
	return s.write(ctx, "unfavorite", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableFavorites, favoriteKey(user, slug))
	})
}

// IsFavorited reports whether user favorited the article.
func (s *Store) IsFavorited(ctx context.Context, user, slug string) (bool, error) {
	return s.Exists(ctx, models.TableFavorites, favoriteKey(user, slug))
}

// FavoritesCount returns how many users favorited the article.
func (s *Store) FavoritesCount(ctx context.Context, slug string) (int64, error) {
	var n int64
	err := s.read(ctx, "favorites_count", func(tx engine.Tx) error {
		var err error
		n, err = tx.Count(ctx, models.TableFavorites, builder.Eq("article", slug))
		return err
	})
	return n, err
}
