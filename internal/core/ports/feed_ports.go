package ports

import (
	"context"

	"github.com/feedapp/feedclient/internal/core/domain"
)

// MutationResult reports how an optimistic mutation settled. Applied means the
// local cache was patched before the backend answered; exactly one of
// Committed or RolledBack holds afterwards, with Reason set on rollback.
type MutationResult struct {
	Applied    bool
	Committed  bool
	RolledBack bool
	Reason     error
}

// PostCountAdjuster patches a cached post's comment count in place.
type PostCountAdjuster interface {
	AdjustCommentCount(postID string, delta int)
}

type FeedService interface {
	// Posts returns the cached post list, fetching it on first access and
	// revalidating stale entries in the background.
	Posts(ctx context.Context) ([]domain.Post, error)
	// RefreshPosts bypasses the cache and refetches the list.
	RefreshPosts(ctx context.Context) ([]domain.Post, error)
	CreatePost(ctx context.Context, text string) (*domain.Post, error)
	UpdatePost(ctx context.Context, id, text string) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) (MutationResult, error)
	ToggleLike(ctx context.Context, postID string) (MutationResult, error)
	Liked(postID string) bool
	// LoadLikes rebuilds the like set from server truth.
	LoadLikes(ctx context.Context) error
	// ClearUserState drops user-scoped cache entries; public entries survive.
	ClearUserState()
	AdjustCommentCount(postID string, delta int)
}
