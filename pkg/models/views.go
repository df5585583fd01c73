package models

import "time"

// Feed page sizes.
const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// Profile is a user as seen by a viewer.
type Profile struct {
	Username  string
	Bio       *string
	Image     *string
	Following bool
}

// ArticleView is an article with its derived fields as seen by a viewer.
type ArticleView struct {
	Slug           string
	Title          string
	Description    string
	Body           string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	Tags           []string
	Favorited      bool
	FavoritesCount int64
	Author         Profile
}

// CommentView is a comment with its author's profile.
type CommentView struct {
	ID        int64
	Body      string
	CreatedAt time.Time
	Article   string
	Author    Profile
}

// ArticleEdit is the editable part of an article. Empty strings keep the
// current value and nil Tags keeps the current tags.
type ArticleEdit struct {
	Title       string
	Description string
	Body        string
	Tags        []string
}

// UserUpdate lists the user attributes to change. Nil fields are kept.
// Bio and Image take a pointer to a nil pointer to clear them.
type UserUpdate struct {
	Email    *string
	Password *string
	Bio      **string
	Image    **string
}

// Feed is one page of articles and the number of articles on all pages.
type Feed struct {
	Articles []ArticleView
	Count    int64
}

// FeedOptions pages a feed. Viewer, when set, fills Favorited and Following.
type FeedOptions struct {
	Offset int
	Limit  int
	Viewer string
}

// Normalized returns o with Limit defaulted and clamped and Offset non-negative.
func (o FeedOptions) Normalized() FeedOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultFeedLimit
	}
	if o.Limit > MaxFeedLimit {
		o.Limit = MaxFeedLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
