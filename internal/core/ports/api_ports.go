package ports

import (
	"context"

	"github.com/feedapp/feedclient/internal/core/domain"
)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the backend's response to register, login and refresh.
type AuthResult struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
}

type VerifyEmailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AuthAPI interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Profile(ctx context.Context) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error)
}

type UserAPI interface {
	// GetUser returns nil without error when the user does not exist.
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type PostAPI interface {
	ListPosts(ctx context.Context, skip, limit int) ([]domain.Post, error)
	// GetPost returns nil without error when the post does not exist.
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, text string) (*domain.Post, error)
	UpdatePost(ctx context.Context, id, text string) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
}

type CommentAPI interface {
	ListComments(ctx context.Context, postID string, skip, limit int) ([]domain.Comment, error)
	CreateComment(ctx context.Context, postID, text string) (*domain.Comment, error)
}

type LikeAPI interface {
	Like(ctx context.Context, postID string) error
	Unlike(ctx context.Context, postID string) error
	// UserLikes returns the ids of every post the current user has liked.
	UserLikes(ctx context.Context) ([]string, error)
}
