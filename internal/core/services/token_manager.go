package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

// DefaultExpiryLeeway makes tokens about to expire count as expired, so they
// are renewed up front instead of burning the 401 retry.
const DefaultExpiryLeeway = 30 * time.Second

type TokenManager struct {
	store     ports.TokenStore
	refresher ports.TokenRefresher
	leeway    time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu    sync.RWMutex
	pair  domain.TokenPair
	group singleflight.Group
}

// NewTokenManager loads any persisted token pair from the store.
func NewTokenManager(store ports.TokenStore, refresher ports.TokenRefresher, log *zap.Logger) (*TokenManager, error) {
	if log == nil {
		log = zap.NewNop()
	}

	pair, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted tokens: %w", err)
	}

	return &TokenManager{
		store:     store,
		refresher: refresher,
		leeway:    DefaultExpiryLeeway,
		now:       time.Now,
		log:       log,
		pair:      pair,
	}, nil
}

// UpdateTokens atomically replaces both tokens and persists them. Token shape
// is not validated here.
func (m *TokenManager) UpdateTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pair = domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	if err := m.store.Save(m.pair); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}

// ClearTokens empties both tokens and removes the persisted pair. Idempotent.
func (m *TokenManager) ClearTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pair = domain.TokenPair{}
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear persisted tokens: %w", err)
	}
	return nil
}

// IsExpired decodes the token's payload without verifying its signature and
// compares the exp claim against the current time. Undecodable tokens are
// expired: the manager fails closed and lets a refresh sort it out.
func (m *TokenManager) IsExpired(token string) bool {
	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !exp.Time.After(m.now().Add(m.leeway))
}

func (m *TokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	access := m.pair.AccessToken
	m.mu.RUnlock()

	if access != "" && !m.IsExpired(access) {
		return access, nil
	}
	return m.RefreshAccessToken(ctx)
}

// RefreshAccessToken exchanges the held refresh token for a new pair. All
// concurrent callers converge on one backend call and share its outcome:
// duplicate refresh-token use can invalidate the token under rotation, so
// this is a correctness requirement, not an optimization.
func (m *TokenManager) RefreshAccessToken(ctx context.Context) (string, error) {
	token, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *TokenManager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken != ""
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	refreshToken := m.pair.RefreshToken
	m.mu.RUnlock()

	if refreshToken == "" {
		return "", domain.ErrNoRefreshToken
	}

	result, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		// A rejected refresh is fatal to the session: clear everything and
		// let the failure surface as a forced logout.
		if clearErr := m.ClearTokens(); clearErr != nil {
			m.log.Warn("failed to clear tokens after refresh failure", zap.Error(clearErr))
		}
		m.log.Info("token refresh failed, session ended", zap.Error(err))
		return "", fmt.Errorf("%w: token refresh rejected: %v", domain.ErrAuthExpired, err)
	}

	// The response's refresh token is authoritative: under rotation the old
	// one may already be invalid, so always overwrite.
	if err := m.UpdateTokens(result.AccessToken, result.RefreshToken); err != nil {
		return "", err
	}

	m.log.Debug("access token refreshed")
	return result.AccessToken, nil
}
