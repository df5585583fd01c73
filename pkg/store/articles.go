package store

import (
	"context"
	"slices"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func articleKey(slug string) engine.Key {
	return engine.Key{"slug": slug}
}

// CreateArticle stores a new article with its tags and returns it as its
// author sees it. An empty slug is derived from the title; the author must
// exist and the slug must be unused.
func (s *Store) CreateArticle(ctx context.Context, a models.Article, tags []string) (models.ArticleView, error) {
	if a.Slug == "" {
		a.Slug = models.SlugFromTitle(a.Title)
	}
	if a.Slug == "" {
		return models.ArticleView{}, emptyKey(models.TableArticles, "slug")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.timestamp()
	}

	var view models.ArticleView
	err := s.write(ctx, "create_article", func(tx engine.Tx) error {
		if _, err := s.insert(ctx, tx, models.TableArticles, a); err != nil {
			return err
		}
		if err := s.insertTags(ctx, tx, a.Slug, tags); err != nil {
			return err
		}
		var err error
		view, err = s.articleView(ctx, tx, a.Slug, a.Author)
		return err
	})
	return view, err
}

// GetArticle returns the stored article.
func (s *Store) GetArticle(ctx context.Context, slug string) (models.Article, error) {
	var a models.Article
	err := s.read(ctx, "get_article", func(tx engine.Tx) error {
		return s.get(ctx, tx, models.TableArticles, articleKey(slug), &a)
	})
	return a, err
}

// ArticleView returns the article as seen by viewer. An empty viewer is anonymous.
func (s *Store) ArticleView(ctx context.Context, slug, viewer string) (models.ArticleView, error) {
	var view models.ArticleView
	err := s.read(ctx, "article_view", func(tx engine.Tx) error {
		var err error
		view, err = s.articleView(ctx, tx, slug, viewer)
		return err
	})
	return view, err
}

// ArticleForEditing returns the editable fields of an article written by
// author. Articles by anyone else are reported as not found.
func (s *Store) ArticleForEditing(ctx context.Context, slug, author string) (models.ArticleEdit, error) {
	var edit models.ArticleEdit
	err := s.read(ctx, "article_for_editing", func(tx engine.Tx) error {
		a, err := s.ownArticle(ctx, tx, slug, author)
		if err != nil {
			return err
		}
		tags, err := s.tagsFor(ctx, tx, []string{slug})
		if err != nil {
			return err
		}
		edit = models.ArticleEdit{
			Title:       a.Title,
			Description: a.Description,
			Body:        a.Body,
			Tags:        tags[slug],
		}
		if edit.Tags == nil {
			edit.Tags = []string{}
		}
		return nil
	})
	return edit, err
}

// UpdateArticle applies edit, stamps updated_at and returns the article as
// its author sees it.
func (s *Store) UpdateArticle(ctx context.Context, slug string, edit models.ArticleEdit) (models.ArticleView, error) {
	return s.updateArticle(ctx, "update_article", slug, nil, edit)
}

// UpdateOwnArticle is UpdateArticle restricted to articles written by
// author. Articles by anyone else are reported as not found and left as they are.
func (s *Store) UpdateOwnArticle(ctx context.Context, slug, author string, edit models.ArticleEdit) (models.ArticleView, error) {
	return s.updateArticle(ctx, "update_own_article", slug, &author, edit)
}

// updateArticle applies edit. When author is set it must own the article.
func (s *Store) updateArticle(ctx context.Context, op, slug string, author *string, edit models.ArticleEdit) (models.ArticleView, error) {
	set := engine.Row{"updated_at": s.timestamp()}
	if edit.Title != "" {
		set["title"] = edit.Title
	}
	if edit.Description != "" {
		set["description"] = edit.Description
	}
	if edit.Body != "" {
		set["body"] = edit.Body
	}

	var view models.ArticleView
	err := s.write(ctx, op, func(tx engine.Tx) error {
		if author != nil {
			if _, err := s.ownArticle(ctx, tx, slug, *author); err != nil {
				return err
			}
		}
		row, err := tx.Update(ctx, models.TableArticles, articleKey(slug), set)
		if err != nil {
			return err
		}
		if edit.Tags != nil {
			if err := s.replaceTags(ctx, tx, slug, edit.Tags); err != nil {
				return err
			}
		}
		owner, _ := row["author"].(string)
		view, err = s.articleView(ctx, tx, slug, owner)
		return err
	})
	return view, err
}

// RenameArticle changes an article's slug. Its comments, tags and
// favorites follow in the same transaction.
func (s *Store) RenameArticle(ctx context.Context, from, to string) error {
	return s.write(ctx, "rename_article", func(tx engine.Tx) error {
		return s.rename(ctx, tx, models.TableArticles, "slug", from, to)
	})
}

// DeleteArticle removes an article with its comments, tags and favorites.
func (s *Store) DeleteArticle(ctx context.Context, slug string) error {
	return s.write(ctx, "delete_article", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableArticles, articleKey(slug))
	})
}

// DeleteOwnArticle is DeleteArticle restricted to articles written by author.
func (s *Store) DeleteOwnArticle(ctx context.Context, slug, author string) error {
	return s.write(ctx, "delete_own_article", func(tx engine.Tx) error {
		if _, err := s.ownArticle(ctx, tx, slug, author); err != nil {
			return err
		}
		return tx.Delete(ctx, models.TableArticles, articleKey(slug))
	})
}

// ArticleExists reports whether slug is taken.
func (s *Store) ArticleExists(ctx context.Context, slug string) (bool, error) {
	return s.Exists(ctx, models.TableArticles, articleKey(slug))
}

func (s *Store) articleMustExist(ctx context.Context, tx engine.Tx, slug string) error {
	ok, err := tx.Exists(ctx, models.TableArticles, articleKey(slug))
	if err != nil {
		return err
	}
	if !ok {
		return runtime.NotFound(models.TableArticles, articleKey(slug))
	}
	return nil
}

func (s *Store) ownArticle(ctx context.Context, tx engine.Tx, slug, author string) (models.Article, error) {
	var a models.Article
	if err := s.get(ctx, tx, models.TableArticles, articleKey(slug), &a); err != nil {
		return a, err
	}
	if a.Author != author {
		return a, runtime.NotFound(models.TableArticles, engine.Key{"slug": slug, "author": author})
	}
	return a, nil
}

func (s *Store) articleView(ctx context.Context, tx engine.Tx, slug, viewer string) (models.ArticleView, error) {
	var a models.Article
	if err := s.get(ctx, tx, models.TableArticles, articleKey(slug), &a); err != nil {
		return models.ArticleView{}, err
	}
	views, err := s.views(ctx, tx, []models.Article{a}, viewer)
	if err != nil {
		return models.ArticleView{}, err
	}
	return views[0], nil
}

// views decorates articles with tags, favorite counts and author profiles
// as seen by viewer, preserving order.
func (s *Store) views(ctx context.Context, tx engine.Tx, articles []models.Article, viewer string) ([]models.ArticleView, error) {
	slugs := make([]string, len(articles))
	var authors []string
	for i, a := range articles {
		slugs[i] = a.Slug
		if !slices.Contains(authors, a.Author) {
			authors = append(authors, a.Author)
		}
	}

	tags, err := s.tagsFor(ctx, tx, slugs)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, tx, authors, viewer)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(slugs))
	favorited := make(map[string]bool)
	if len(slugs) > 0 {
		rows, err := tx.Select(ctx, models.TableFavorites, engine.Query{
			Where: []builder.Condition{builder.In("article", anys(slugs)...)},
		})
		if err != nil {
			return nil, err
		}
		favs, err := scanAll[models.Favorite](s, models.TableFavorites, rows)
		if err != nil {
			return nil, err
		}
		for _, f := range favs {
			counts[f.Article]++
			if viewer != "" && f.User == viewer {
				favorited[f.Article] = true
			}
		}
	}

	out := make([]models.ArticleView, len(articles))
	for i, a := range articles {
		t := tags[a.Slug]
		if t == nil {
			t = []string{}
		}
		out[i] = models.ArticleView{
			Slug:           a.Slug,
			Title:          a.Title,
			Description:    a.Description,
			Body:           a.Body,
			CreatedAt:      a.CreatedAt,
			UpdatedAt:      a.UpdatedAt,
			Tags:           t,
			Favorited:      favorited[a.Slug],
			FavoritesCount: counts[a.Slug],
			Author:         profiles[a.Author],
		}
	}
	return out, nil
}
