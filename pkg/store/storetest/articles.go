package storetest

import (
	"time"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func (s *Suite) TestCreateArticle() {
	s.Seed()

	view, err := s.Store.ArticleView(s.ctx, Dragon, "")
	s.Require().NoError(err)
	s.Equal("How to train your dragon", view.Title)
	s.Equal([]string{"dragons", "training"}, view.Tags)
	s.Equal(int64(2), view.FavoritesCount)
	s.False(view.Favorited)
	s.Equal("jake", view.Author.Username)
	s.True(view.CreatedAt.Equal(Epoch.Add(time.Second)), "created_at comes from the store clock")
	s.Nil(view.UpdatedAt)
}

func (s *Suite) TestCreateArticle_Slugs() {
	s.Seed()

	view, err := s.Store.CreateArticle(s.ctx, models.Article{
		Slug: "explicit", Title: "Whatever", Description: "d", Body: "b", Author: "bob",
	}, []string{"a", "a", "", "b"})
	s.Require().NoError(err)
	s.Equal("explicit", view.Slug)
	s.Equal([]string{"a", "b"}, view.Tags, "tags are deduplicated")

	_, err = s.Store.CreateArticle(s.ctx, models.Article{
		Title: "How to train your dragon", Description: "d", Body: "b", Author: "bob",
	}, nil)
	s.ErrorIs(err, runtime.ErrDuplicateKey, "derived slug collides")

	_, err = s.Store.CreateArticle(s.ctx, models.Article{Title: "!!!", Description: "d", Body: "b", Author: "bob"}, nil)
	s.ErrorIs(err, runtime.ErrEmptyKey)

	s.Equal(int64(3), s.Count(models.TableArticles))
}

func (s *Suite) TestInsertBeforeReference() {
	s.Seed()

	_, err := s.Store.CreateArticle(s.ctx, models.Article{
		Title: "Orphan", Description: "d", Body: "b", Author: "ghost",
	}, []string{"x"})
	s.ErrorIs(err, runtime.ErrConstraintViolation)
	s.ErrorIs(err, runtime.ErrNotFound)
	s.ErrorIs(err, runtime.ErrForeignKeyViolation)

	_, err = s.Store.AddComment(s.ctx, "no-such-article", "jake", "hi")
	s.ErrorIs(err, runtime.ErrNotFound)
	_, err = s.Store.AddComment(s.ctx, Dragon, "ghost", "hi")
	s.ErrorIs(err, runtime.ErrNotFound)

	s.ErrorIs(s.Store.Favorite(s.ctx, "jake", "no-such-article"), runtime.ErrNotFound)
	s.ErrorIs(s.Store.Follow(s.ctx, "jake", "ghost"), runtime.ErrNotFound)
	s.ErrorIs(s.Store.AddTag(s.ctx, "no-such-article", "x"), runtime.ErrNotFound)

	// The failed create left neither the article nor its tags.
	s.Equal(int64(2), s.Count(models.TableArticles))
	s.Zero(s.Count(models.TableTags, builder.Eq("tag", "x")))
}

func (s *Suite) TestUpdateArticle() {
	s.Seed()

	view, err := s.Store.UpdateArticle(s.ctx, Dragon, models.ArticleEdit{
		Body: "Believe harder",
		Tags: []string{"dragons", "faith"},
	})
	s.Require().NoError(err)
	s.Equal("How to train your dragon", view.Title, "empty fields are kept")
	s.Equal("Believe harder", view.Body)
	s.Equal([]string{"dragons", "faith"}, view.Tags)
	s.Require().NotNil(view.UpdatedAt)
	s.True(view.UpdatedAt.After(view.CreatedAt))

	view, err = s.Store.UpdateArticle(s.ctx, Dragon, models.ArticleEdit{Title: "Dragons"})
	s.Require().NoError(err)
	s.Equal(Dragon, view.Slug, "a new title keeps the slug")
	s.Equal([]string{"dragons", "faith"}, view.Tags, "nil tags are kept")

	_, err = s.Store.UpdateArticle(s.ctx, "nope", models.ArticleEdit{Title: "x"})
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *Suite) TestUpdateOwnArticle() {
	s.Seed()
	before, err := s.Store.GetArticle(s.ctx, Dragon)
	s.Require().NoError(err)
	tags, err := s.Store.TagsForArticle(s.ctx, Dragon)
	s.Require().NoError(err)

	_, err = s.Store.UpdateOwnArticle(s.ctx, Dragon, "jane", models.ArticleEdit{
		Title: "Hijacked", Body: "x", Tags: []string{"spam"},
	})
	s.ErrorIs(err, runtime.ErrNotFound)

	after, err := s.Store.GetArticle(s.ctx, Dragon)
	s.Require().NoError(err)
	s.Equal(before, after, "a non-author update changes nothing")
	got, err := s.Store.TagsForArticle(s.ctx, Dragon)
	s.Require().NoError(err)
	s.Equal(tags, got)

	_, err = s.Store.UpdateOwnArticle(s.ctx, "nope", "jake", models.ArticleEdit{Title: "x"})
	s.ErrorIs(err, runtime.ErrNotFound)

	view, err := s.Store.UpdateOwnArticle(s.ctx, Dragon, "jake", models.ArticleEdit{Description: "Ever wonder how?"})
	s.Require().NoError(err)
	s.Equal("Ever wonder how?", view.Description)
	s.Equal(before.Title, view.Title)
	s.Require().NotNil(view.UpdatedAt)
}

func (s *Suite) TestArticleForEditing() {
	s.Seed()

	edit, err := s.Store.ArticleForEditing(s.ctx, Dragon, "jake")
	s.Require().NoError(err)
	s.Equal(models.ArticleEdit{
		Title:       "How to train your dragon",
		Description: "Ever wonder how?",
		Body:        "You have to believe",
		Tags:        []string{"dragons", "training"},
	}, edit)

	_, err = s.Store.ArticleForEditing(s.ctx, Dragon, "jane")
	s.ErrorIs(err, runtime.ErrNotFound)
}

func (s *Suite) TestRenameArticle_Propagates() {
	s.Seed()
	const renamed = "how-to-train-your-dragon-2"
	before := s.References(models.TableArticles, Dragon)
	s.Equal(int64(5), before)

	s.Require().NoError(s.Store.RenameArticle(s.ctx, Dragon, renamed))

	s.Zero(s.References(models.TableArticles, Dragon))
	s.Equal(before, s.References(models.TableArticles, renamed))

	view, err := s.Store.ArticleView(s.ctx, renamed, "bob")
	s.Require().NoError(err)
	s.Equal([]string{"dragons", "training"}, view.Tags)
	s.Equal(int64(2), view.FavoritesCount)
	s.True(view.Favorited)

	comments, err := s.Store.CommentsForArticle(s.ctx, renamed, "")
	s.Require().NoError(err)
	s.Require().Len(comments, 1)
	s.Equal(renamed, comments[0].Article)

	s.ErrorIs(s.Store.RenameArticle(s.ctx, renamed, GoPost), runtime.ErrDuplicateKey)
	s.ErrorIs(s.Store.RenameArticle(s.ctx, Dragon, "x"), runtime.ErrNotFound)
}

func (s *Suite) TestDeleteArticle() {
	s.Seed()

	s.ErrorIs(s.Store.DeleteOwnArticle(s.ctx, Dragon, "jane"), runtime.ErrNotFound)
	ok, err := s.Store.ArticleExists(s.ctx, Dragon)
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.Store.DeleteOwnArticle(s.ctx, Dragon, "jake"))
	s.Zero(s.References(models.TableArticles, Dragon))
	s.Equal(int64(3), s.Count(models.TableUsers))

	s.Require().NoError(s.Store.DeleteArticle(s.ctx, GoPost))
	s.Zero(s.Count(models.TableComments))
	s.ErrorIs(s.Store.DeleteArticle(s.ctx, GoPost), runtime.ErrNotFound)
}
