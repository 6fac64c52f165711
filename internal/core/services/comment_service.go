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

// commentService keeps one cache entry per post id plus the pending comment
// drafts the UI is composing.
type commentService struct {
	api   ports.CommentAPI
	posts ports.PostCountAdjuster
	log   *zap.Logger

	cache *QueryCache[[]domain.Comment]

	mu     sync.Mutex
	drafts map[string]string
}

func NewCommentService(api ports.CommentAPI, posts ports.PostCountAdjuster, log *zap.Logger) ports.CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &commentService{
		api:    api,
		posts:  posts,
		log:    log,
		cache:  NewQueryCache[[]domain.Comment](DefaultStaleAfter),
		drafts: make(map[string]string),
	}
}

func commentsKey(postID string) string {
	return "comments:" + postID
}

func (s *commentService) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	comments, err := s.cache.Get(ctx, commentsKey(postID), func(ctx context.Context) ([]domain.Comment, error) {
		comments, err := s.api.ListComments(ctx, postID, 0, defaultPageSize)
		if err != nil {
			return nil, err
		}
		if comments == nil {
			comments = []domain.Comment{}
		}
		return comments, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The post is gone server-side; its comment entry is stale.
			s.cache.Evict(commentsKey(postID))
			return nil, err
		}
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return comments, nil
}

// CreateComment appends the server-returned comment, never a locally
// synthesized one, and bumps the cached post's comment count by exactly one.
func (s *commentService) CreateComment(ctx context.Context, postID, text string) (*domain.Comment, error) {
	comment, err := s.api.CreateComment(ctx, postID, text)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.cache.Evict(commentsKey(postID))
		}
		return nil, err
	}

	s.cache.Update(commentsKey(postID), func(comments []domain.Comment) []domain.Comment {
		return append(append([]domain.Comment(nil), comments...), *comment)
	})
	s.posts.AdjustCommentCount(postID, 1)
	s.SetDraft(postID, "")
	return comment, nil
}

func (s *commentService) SetDraft(postID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.drafts, postID)
		return
	}
	s.drafts[postID] = text
}

func (s *commentService) Draft(postID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[postID]
}
