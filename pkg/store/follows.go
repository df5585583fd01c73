package store

import (
	"context"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
)

func followKey(follower, followed string) engine.Key {
	return engine.Key{"follower": follower, "followed": followed}
}

// Follow records that follower follows followed. Both users must exist and
// the pair must be new.
func (s *Store) Follow(ctx context.Context, follower, followed string) error {
	return s.write(ctx, "follow", func(tx engine.Tx) error {
		_, err := s.insert(ctx, tx, models.TableFollows, models.Follow{Follower: follower, Followed: followed})
		return err
	})
}

// Unfollow removes the follow from follower to followed.
func (s *Store) Unfollow(ctx context.Context, follower, followed string) error {
	return s.write(ctx, "unfollow", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableFollows, followKey(follower, followed))
	})
}

// IsFollowing reports whether follower follows followed.
func (s *Store) IsFollowing(ctx context.Context, follower, followed string) (bool, error) {
	return s.Exists(ctx, models.TableFollows, followKey(follower, followed))
}

// Following returns the usernames user follows, sorted.
func (s *Store) Following(ctx context.Context, user string) ([]string, error) {
	return s.follows(ctx, "following", "follower", user, "followed")
}

// Followers returns the usernames that follow user, sorted.
func (s *Store) Followers(ctx context.Context, user string) ([]string, error) {
	return s.follows(ctx, "followers", "followed", user, "follower")
}

func (s *Store) follows(ctx context.Context, op, by, user, want string) ([]string, error) {
	var names []string
	err := s.read(ctx, op, func(tx engine.Tx) error {
		rows, err := tx.Select(ctx, models.TableFollows, engine.Query{
			Where:   []builder.Condition{builder.Eq(by, user)},
			OrderBy: []builder.OrderBy{{Column: want, Direction: builder.Asc}},
		})
		if err != nil {
			return err
		}
		names = columnValues[string](rows, want)
		return nil
	})
	return names, err
}
