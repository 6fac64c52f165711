package ports

import (
	"context"

	"github.com/feedapp/feedclient/internal/core/domain"
)

type SessionService interface {
	Register(ctx context.Context, input RegisterInput) (domain.Session, error)
	Login(ctx context.Context, input LoginInput) (domain.Session, error)
	Logout() error
	// Resume restores a session from persisted tokens at application start.
	Resume(ctx context.Context) (domain.Session, error)
	Current() domain.Session
	// Profile returns the session user, fetching it from the backend when
	// not yet loaded. An expired session forces a logout.
	Profile(ctx context.Context) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error)
}
