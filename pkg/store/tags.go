package store

import (
	"context"
	"slices"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/engine"
	"github.com/marshallshelly/conduit/pkg/models"
)

func tagKey(tag, slug string) engine.Key {
	return engine.Key{"tag": tag, "article": slug}
}

// AddTag labels the article with tag.
func (s *Store) AddTag(ctx context.Context, slug, tag string) error {
	if tag == "" {
		return emptyKey(models.TableTags, "tag")
	}
	return s.write(ctx, "add_tag", func(tx engine.Tx) error {
		_, err := s.insert(ctx, tx, models.TableTags, models.Tag{Tag: tag, Article: slug})
		return err
	})
}

// RemoveTag removes tag from the article.
func (s *Store) RemoveTag(ctx context.Context, slug, tag string) error {
	return s.write(ctx, "remove_tag", func(tx engine.Tx) error {
		return tx.Delete(ctx, models.TableTags, tagKey(tag, slug))
	})
}

// TagExists reports whether the article carries tag.
func (s *Store) TagExists(ctx context.Context, slug, tag string) (bool, error) {
	return s.Exists(ctx, models.TableTags, tagKey(tag, slug))
}

// TagsForArticle returns the article's tags, sorted.
func (s *Store) TagsForArticle(ctx context.Context, slug string) ([]string, error) {
	var tags []string
	err := s.read(ctx, "tags_for_article", func(tx engine.Tx) error {
		if err := s.articleMustExist(ctx, tx, slug); err != nil {
			return err
		}
		byArticle, err := s.tagsFor(ctx, tx, []string{slug})
		tags = byArticle[slug]
		return err
	})
	if tags == nil {
		tags = []string{}
	}
	return tags, err
}

// AllTags returns every tag in use, once each, sorted.
func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	var tags []string
	err := s.read(ctx, "all_tags", func(tx engine.Tx) error {
		rows, err := tx.Select(ctx, models.TableTags, engine.Query{
			OrderBy: []builder.OrderBy{{Column: "tag", Direction: builder.Asc}},
		})
		if err != nil {
			return err
		}
		tags = slices.Compact(columnValues[string](rows, "tag"))
		return nil
	})
	return tags, err
}

// tagsFor returns the sorted tags of each slug.
func (s *Store) tagsFor(ctx context.Context, tx engine.Tx, slugs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(slugs))
	if len(slugs) == 0 {
		return out, nil
	}
	rows, err := tx.Select(ctx, models.TableTags, engine.Query{
		Where:   []builder.Condition{builder.In("article", anys(slugs)...)},
		OrderBy: []builder.OrderBy{{Column: "tag", Direction: builder.Asc}},
	})
	if err != nil {
		return nil, err
	}
	tags, err := scanAll[models.Tag](s, models.TableTags, rows)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		out[t.Article] = append(out[t.Article], t.Tag)
	}
	return out, nil
}

// replaceTags makes tags the complete tag set of slug.
func (s *Store) replaceTags(ctx context.Context, tx engine.Tx, slug string, tags []string) error {
	if _, err := tx.DeleteWhere(ctx, models.TableTags, builder.Eq("article", slug)); err != nil {
		return err
	}
	return s.insertTags(ctx, tx, slug, tags)
}

func (s *Store) insertTags(ctx context.Context, tx engine.Tx, slug string, tags []string) error {
	for _, tag := range uniqueTags(tags) {
		if _, err := s.insert(ctx, tx, models.TableTags, models.Tag{Tag: tag, Article: slug}); err != nil {
			return err
		}
	}
	return nil
}

// uniqueTags drops empty and repeated tags, keeping first occurrences.
func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
