package storetest

import (
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func (s *Suite) TestComments() {
	s.Seed()

	c, err := s.Store.AddComment(s.ctx, Dragon, "bob", "Second!")
	s.Require().NoError(err)
	s.Positive(c.ID)
	s.Equal("bob", c.Author.Username)

	comments, err := s.Store.CommentsForArticle(s.ctx, Dragon, "bob")
	s.Require().NoError(err)
	s.Require().Len(comments, 2)
	s.Equal("Nice dragon", comments[0].Body, "oldest first")
	s.Equal(c.ID, comments[1].ID)
	s.Less(comments[0].ID, comments[1].ID, "ids only grow")
	s.False(comments[0].Author.Following, "bob does not follow jane")

	_, err = s.Store.CommentsForArticle(s.ctx, "nope", "")
	s.ErrorIs(err, runtime.ErrNotFound)

	s.ErrorIs(s.Store.DeleteOwnComment(s.ctx, c.ID, "jake"), runtime.ErrNotFound)
	s.Require().NoError(s.Store.DeleteOwnComment(s.ctx, c.ID, "bob"))
	ok, err := s.Store.CommentExists(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.Store.DeleteComment(s.ctx, comments[0].ID))
	s.ErrorIs(s.Store.DeleteComment(s.ctx, comments[0].ID), runtime.ErrNotFound)
}

func (s *Suite) TestTags() {
	s.Seed()

	s.Require().NoError(s.Store.AddTag(s.ctx, GoPost, "training"))
	s.ErrorIs(s.Store.AddTag(s.ctx, GoPost, "training"), runtime.ErrDuplicateKey)
	s.ErrorIs(s.Store.AddTag(s.ctx, GoPost, ""), runtime.ErrEmptyKey)

	tags, err := s.Store.AllTags(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"dragons", "go", "training"}, tags, "distinct and sorted")

	tags, err = s.Store.TagsForArticle(s.ctx, GoPost)
	s.Require().NoError(err)
	s.Equal([]string{"go", "training"}, tags)

	s.Require().NoError(s.Store.RemoveTag(s.ctx, GoPost, "go"))
	ok, err := s.Store.TagExists(s.ctx, GoPost, "go")
	s.Require().NoError(err)
	s.False(ok)
	s.ErrorIs(s.Store.RemoveTag(s.ctx, GoPost, "go"), runtime.ErrNotFound)

	_, err = s.Store.TagsForArticle(s.ctx, "nope")
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *Suite) TestFollows() {
	s.Seed()

	s.ErrorIs(s.Store.Follow(s.ctx, "jake", "jane"), runtime.ErrDuplicateKey)
	s.Require().NoError(s.Store.Follow(s.ctx, "jane", "jane"), "following oneself is allowed")
	s.Require().NoError(s.Store.Follow(s.ctx, "bob", "jane"))

	followers, err := s.Store.Followers(s.ctx, "jane")
	s.Require().NoError(err)
	s.Equal([]string{"bob", "jake", "jane"}, followers)

	following, err := s.Store.Following(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal([]string{"jake", "jane"}, following)

	s.Require().NoError(s.Store.Unfollow(s.ctx, "bob", "jake"))
	ok, err := s.Store.IsFollowing(s.ctx, "bob", "jake")
	s.Require().NoError(err)
	s.False(ok)
	s.ErrorIs(s.Store.Unfollow(s.ctx, "bob", "jake"), runtime.ErrNotFound)

	// A self-follow disappears with its user like any other.
	s.Require().NoError(s.Store.DeleteUser(s.ctx, "jane"))
	s.Zero(s.References(models.TableUsers, "jane"))
}

func (s *Suite) TestFavoriteUniqueness() {
	s.Seed()

	err := s.Store.Favorite(s.ctx, "jane", Dragon)
	s.ErrorIs(err, runtime.ErrConstraintViolation)
	s.ErrorIs(err, runtime.ErrDuplicateKey)

	n, err := s.Store.FavoritesCount(s.ctx, Dragon)
	s.Require().NoError(err)
	s.Equal(int64(2), n, "a user counts once")

	s.Require().NoError(s.Store.Unfavorite(s.ctx, "jane", Dragon))
	ok, err := s.Store.IsFavorited(s.ctx, "jane", Dragon)
	s.Require().NoError(err)
	s.False(ok)
	s.Require().NoError(s.Store.Favorite(s.ctx, "jane", Dragon), "favoriting again after removal")
	s.ErrorIs(s.Store.Unfavorite(s.ctx, "jake", Dragon), runtime.ErrNotFound)
}
