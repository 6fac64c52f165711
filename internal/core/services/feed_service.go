package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

const (
	postsKey        = "posts:list"
	defaultPageSize = 50
)

// feedService owns the cached post list and the set of posts the current
// user has liked, and applies the optimistic mutation policy on top of them.
type feedService struct {
	posts ports.PostAPI
	likes ports.LikeAPI
	log   *zap.Logger

	cache *QueryCache[[]domain.Post]

	mu    sync.Mutex
	liked map[string]struct{}
}

func NewFeedService(posts ports.PostAPI, likes ports.LikeAPI, log *zap.Logger) ports.FeedService {
	if log == nil {
		log = zap.NewNop()
	}
	return &feedService{
		posts: posts,
		likes: likes,
		log:   log,
		cache: NewQueryCache[[]domain.Post](DefaultStaleAfter),
		liked: make(map[string]struct{}),
	}
}

func (s *feedService) Posts(ctx context.Context) ([]domain.Post, error) {
	return s.cache.Get(ctx, postsKey, s.fetchPosts)
}

func (s *feedService) RefreshPosts(ctx context.Context) ([]domain.Post, error) {
	return s.cache.Refetch(ctx, postsKey, s.fetchPosts)
}

func (s *feedService) fetchPosts(ctx context.Context) ([]domain.Post, error) {
	posts, err := s.posts.ListPosts(ctx, 0, defaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	if posts == nil {
		// An empty backend is a loaded, empty list, not an absent one.
		posts = []domain.Post{}
	}
	return posts, nil
}

// CreatePost waits for the server ack before touching the cache: the id and
// timestamps are server-assigned and needed for any further interaction.
func (s *feedService) CreatePost(ctx context.Context, text string) (*domain.Post, error) {
	post, err := s.posts.CreatePost(ctx, text)
	if err != nil {
		return nil, err
	}

	s.cache.Update(postsKey, func(posts []domain.Post) []domain.Post {
		return append([]domain.Post{*post}, posts...)
	})
	return post, nil
}

func (s *feedService) UpdatePost(ctx context.Context, id, text string) (*domain.Post, error) {
	post, err := s.posts.UpdatePost(ctx, id, text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted server-side: the cached entry is a ghost, drop it.
			s.removeCached(id)
		}
		return nil, err
	}

	s.cache.Update(postsKey, func(posts []domain.Post) []domain.Post {
		patched := append([]domain.Post(nil), posts...)
		for i := range patched {
			if patched[i].ID == id {
				patched[i] = *post
			}
		}
		return patched
	})
	return post, nil
}

// DeletePost removes the post from the cache immediately and restores the
// prior snapshot only if the backend rejects the delete for a reason other
// than the post already being gone.
func (s *feedService) DeletePost(ctx context.Context, id string) (ports.MutationResult, error) {
	snapshot, hadEntry := s.cache.Peek(postsKey)
	if hadEntry {
		snapshot = append([]domain.Post(nil), snapshot...)
	}
	s.removeCached(id)

	err := s.posts.DeletePost(ctx, id)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		// Already-gone counts as success; the optimistic state stands.
		return ports.MutationResult{Applied: true, Committed: true}, nil
	}

	if hadEntry {
		s.cache.Set(postsKey, snapshot)
	}
	s.log.Warn("delete rolled back", zap.String("post_id", id), zap.Error(err))
	return ports.MutationResult{Applied: true, RolledBack: true, Reason: err}, err
}

// ToggleLike optimistically flips like membership and the cached like count,
// reverting both if the backend rejects the call. A missing post means local
// state has drifted too far to patch, so the whole list is refetched.
func (s *feedService) ToggleLike(ctx context.Context, postID string) (ports.MutationResult, error) {
	s.mu.Lock()
	_, wasLiked := s.liked[postID]
	if wasLiked {
		delete(s.liked, postID)
	} else {
		s.liked[postID] = struct{}{}
	}
	s.mu.Unlock()

	delta := 1
	if wasLiked {
		delta = -1
	}
	s.adjustLikeCount(postID, delta)

	var err error
	if wasLiked {
		err = s.likes.Unlike(ctx, postID)
	} else {
		err = s.likes.Like(ctx, postID)
	}
	if err == nil {
		return ports.MutationResult{Applied: true, Committed: true}, nil
	}

	// Revert membership and count before deciding what to surface.
	s.mu.Lock()
	if wasLiked {
		s.liked[postID] = struct{}{}
	} else {
		delete(s.liked, postID)
	}
	s.mu.Unlock()
	s.adjustLikeCount(postID, -delta)

	if errors.Is(err, domain.ErrNotFound) {
		if _, refetchErr := s.RefreshPosts(ctx); refetchErr != nil {
			s.log.Warn("post list refetch after missing like target failed", zap.Error(refetchErr))
		}
		return ports.MutationResult{Applied: true, RolledBack: true, Reason: err}, nil
	}
	return ports.MutationResult{Applied: true, RolledBack: true, Reason: err}, err
}

func (s *feedService) Liked(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liked[postID]
	return ok
}

func (s *feedService) LoadLikes(ctx context.Context) error {
	ids, err := s.likes.UserLikes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load user likes: %w", err)
	}

	liked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		liked[id] = struct{}{}
	}

	s.mu.Lock()
	s.liked = liked
	s.mu.Unlock()
	return nil
}

// ClearUserState drops the like set. The post list is public data and
// survives logout.
func (s *feedService) ClearUserState() {
	s.mu.Lock()
	s.liked = make(map[string]struct{})
	s.mu.Unlock()
}

func (s *feedService) AdjustCommentCount(postID string, delta int) {
	s.cache.Update(postsKey, func(posts []domain.Post) []domain.Post {
		patched := append([]domain.Post(nil), posts...)
		for i := range patched {
			if patched[i].ID == postID {
				patched[i].CommentCount += delta
			}
		}
		return patched
	})
}

func (s *feedService) adjustLikeCount(postID string, delta int) {
	s.cache.Update(postsKey, func(posts []domain.Post) []domain.Post {
		patched := append([]domain.Post(nil), posts...)
		for i := range patched {
			if patched[i].ID == postID {
				patched[i].LikeCount += delta
			}
		}
		return patched
	})
}

// removeCached tolerates ids that are already gone: rapid repeat mutations
// may reference entities no longer present, which is benign.
func (s *feedService) removeCached(id string) {
	s.cache.Update(postsKey, func(posts []domain.Post) []domain.Post {
		kept := make([]domain.Post, 0, len(posts))
		for _, post := range posts {
			if post.ID != id {
				kept = append(kept, post)
			}
		}
		return kept
	})
}
