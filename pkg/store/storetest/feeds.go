package storetest

import (
	"fmt"
	"sync"

	"github.com/marshallshelly/conduit/pkg/integrity"
	"github.com/marshallshelly/conduit/pkg/models"
)

func slugs(feed models.Feed) []string {
	out := make([]string, len(feed.Articles))
	for i, a := range feed.Articles {
		out[i] = a.Slug
	}
	return out
}

func (s *Suite) TestFeeds() {
	s.Seed()

	tests := []struct {
		name  string
		feed  func() (models.Feed, error)
		slugs []string
	}{
		{"global", func() (models.Feed, error) { return s.Store.GlobalFeed(s.ctx, models.FeedOptions{}) }, []string{GoPost, Dragon}},
		{"author", func() (models.Feed, error) { return s.Store.AuthorFeed(s.ctx, "jake", models.FeedOptions{}) }, []string{Dragon}},
		{"following", func() (models.Feed, error) { return s.Store.FollowingFeed(s.ctx, "jake", models.FeedOptions{}) }, []string{GoPost}},
		{"following nobody", func() (models.Feed, error) { return s.Store.FollowingFeed(s.ctx, "jane", models.FeedOptions{}) }, []string{}},
		{"favorited", func() (models.Feed, error) { return s.Store.FavoritedFeed(s.ctx, "bob", models.FeedOptions{}) }, []string{Dragon}},
		{"tag", func() (models.Feed, error) { return s.Store.TagFeed(s.ctx, "go", models.FeedOptions{}) }, []string{GoPost}},
		{"unknown tag", func() (models.Feed, error) { return s.Store.TagFeed(s.ctx, "rust", models.FeedOptions{}) }, []string{}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			feed, err := tt.feed()
			s.Require().NoError(err)
			s.Equal(tt.slugs, slugs(feed))
			s.Equal(int64(len(tt.slugs)), feed.Count)
		})
	}
}

func (s *Suite) TestFeed_PagingAndViewer() {
	s.Seed()

	page, err := s.Store.GlobalFeed(s.ctx, models.FeedOptions{Limit: 1, Offset: 1, Viewer: "bob"})
	s.Require().NoError(err)
	s.Equal([]string{Dragon}, slugs(page))
	s.Equal(int64(2), page.Count, "count spans every page")

	a := page.Articles[0]
	s.True(a.Favorited)
	s.Equal(int64(2), a.FavoritesCount)
	s.True(a.Author.Following)
	s.Equal([]string{"dragons", "training"}, a.Tags)

	page, err = s.Store.GlobalFeed(s.ctx, models.FeedOptions{Offset: 5})
	s.Require().NoError(err)
	s.Empty(page.Articles)
	s.Equal(int64(2), page.Count)

	for i := range 3 {
		_, err := s.Store.CreateArticle(s.ctx, models.Article{
			Title: fmt.Sprintf("Post %d", i), Description: "d", Body: "b", Author: "bob",
		}, nil)
		s.Require().NoError(err)
	}
	page, err = s.Store.GlobalFeed(s.ctx, models.FeedOptions{Limit: 2})
	s.Require().NoError(err)
	s.Equal([]string{"post-2", "post-1"}, slugs(page), "newest first")
	s.False(page.Articles[0].Favorited, "anonymous")
}

func (s *Suite) TestConcurrentWriters() {
	s.Seed()
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, 2*writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("reader%d", i)
			if _, err := s.Store.CreateUser(s.ctx, models.User{Username: name, Email: name + "@x", Password: "h"}); err != nil {
				errs <- err
				return
			}
			if err := s.Store.Favorite(s.ctx, name, Dragon); err != nil {
				errs <- err
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- s.Store.DeleteArticle(s.ctx, GoPost)
	}()
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			violations, err := integrity.Check(s.ctx, s.Engine)
			if err == nil && len(violations) > 0 {
				err = fmt.Errorf("reader saw %d dangling references", len(violations))
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	n, err := s.Store.FavoritesCount(s.ctx, Dragon)
	s.Require().NoError(err)
	s.Equal(int64(2+writers), n)
	s.Zero(s.References(models.TableArticles, GoPost))
}
