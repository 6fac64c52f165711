package ports

import (
	"context"

	"github.com/feedapp/feedclient/internal/core/domain"
)

// TokenStore persists a token pair across process restarts.
type TokenStore interface {
	Load() (domain.TokenPair, error)
	Save(pair domain.TokenPair) error
	Clear() error
}

// TokenRefresher exchanges a refresh token for a fresh pair at the backend.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
}

type TokenManager interface {
	UpdateTokens(access, refresh string) error
	ClearTokens() error
	IsExpired(token string) bool
	// GetValidAccessToken returns the held access token, refreshing it first
	// if absent or expired. Concurrent callers share a single refresh.
	GetValidAccessToken(ctx context.Context) (string, error)
	// RefreshAccessToken forces a refresh. Failure clears all tokens and
	// surfaces as domain.ErrAuthExpired.
	RefreshAccessToken(ctx context.Context) (string, error)
	Authenticated() bool
}
