package ports

import (
	"context"

	"github.com/feedapp/feedclient/internal/core/domain"
)

type CommentService interface {
	// Comments returns the cached comment list for a post, fetching it on
	// first access. Repeated calls for the same post share one fetch.
	Comments(ctx context.Context, postID string) ([]domain.Comment, error)
	CreateComment(ctx context.Context, postID, text string) (*domain.Comment, error)
	SetDraft(postID, text string)
	Draft(postID string) string
}
