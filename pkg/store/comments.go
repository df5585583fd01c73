package store

import (
	"context"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func commentKey(id int64) engine.Key {
	return engine.Key{"id": id}
}

// AddComment stores a comment by user on the article. The store assigns
// the id; ids only grow.
func (s *Store) AddComment(ctx context.Context, slug, user, body string) (models.CommentView, error) {
	var view models.CommentView
	err := s.write(ctx, "add_comment", func(tx engine.Tx) error {
		row, err := s.insert(ctx, tx, models.TableComments, models.Comment{
			Body:      body,
			CreatedAt: s.timestamp(),
			Article:   slug,
			User:      user,
		})
		if err != nil {
			return err
		}
		var c models.Comment
		if err := engine.ScanStruct(s.tables[models.TableComments], row, &c); err != nil {
			return err
		}
		views, err := s.commentViews(ctx, tx, []models.Comment{c}, user)
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	return view, err
}

// CommentsForArticle returns the article's comments, oldest first, with
// author profiles as seen by viewer.
func (s *Store) CommentsForArticle(ctx context.Context, slug, viewer string) ([]models.CommentView, error) {
	var views []models.CommentView
	err := s.read(ctx, "comments_for_article", func(tx engine.Tx) error {
		if err := s.articleMustExist(ctx, tx, slug); err != nil {
			return err
		}
		rows, err := tx.Select(ctx, models.TableComments, engine.Query{
			Where: []builder.Condition{builder.Eq("article", slug)},
			OrderBy: []builder.OrderBy{
				{Column: "created_at", Direction: builder.Asc},
				{Column: "id", Direction: builder.Asc},
			},
		})
		if err != nil {
			return err
		}
		comments, err := scanAll[models.Comment](s, models.TableComments, rows)
		if err != nil {
			return err
		}
		views, err = s.commentViews(ctx, tx, comments, viewer)
		return err
	})
	return views, err
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return s.write(ctx, "delete_comment", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableComments, commentKey(id))
	})
}

// DeleteOwnComment removes a comment written by user. Comments by anyone
// else are reported as not found.
func (s *Store) DeleteOwnComment(ctx context.Context, id int64, user string) error {
	return s.write(ctx, "delete_own_comment", func(tx engine.Tx) error {
		var c models.Comment
		if err := s.get(ctx, tx, models.TableComments, commentKey(id), &c); err != nil {
			return err
		}
		if c.User != user {
			return runtime.NotFound(models.TableComments, engine.Key{"id": id, "user": user})
		}
		return tx.Delete(ctx, models.TableComments, commentKey(id))
	})
}

// CommentExists reports whether a comment with id exists.
func (s *Store) CommentExists(ctx context.Context, id int64) (bool, error) {
	return s.Exists(ctx, models.TableComments, commentKey(id))
}

func (s *Store) commentViews(ctx context.Context, tx engine.Tx, comments []models.Comment, viewer string) ([]models.CommentView, error) {
	var authors []string
	seen := map[string]bool{}
	for _, c := range comments {
		if !seen[c.User] {
			seen[c.User] = true
			authors = append(authors, c.User)
		}
	}
	profiles, err := s.profiles(ctx, tx, authors, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]models.CommentView, len(comments))
	for i, c := range comments {
		out[i] = models.CommentView{
			ID:        c.ID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
			Article:   c.Article,
			Author:    profiles[c.User],
		}
	}
	return out, nil
}
