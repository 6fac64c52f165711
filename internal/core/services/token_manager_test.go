package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedapp/feedclient/internal/adapters/storage"
	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

func seededStore(t *testing.T, pair domain.TokenPair) *storage.MemoryTokenStore {
	t.Helper()
	store := storage.NewMemoryTokenStore()
	require.NoError(t, store.Save(pair))
	return store
}

func storedPair(t *testing.T, store ports.TokenStore) domain.TokenPair {
	t.Helper()
	pair, err := store.Load()
	require.NoError(t, err)
	return pair
}

type mockRefresher struct {
	calls  atomic.Int64
	delay  time.Duration
	result *ports.AuthResult
	err    error
}

func (r *mockRefresher) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func tokenWithoutExp(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newTestManager(t *testing.T, store ports.TokenStore, refresher ports.TokenRefresher) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager(store, refresher, nil)
	require.NoError(t, err)
	return manager
}

func TestIsExpired(t *testing.T) {
	manager := newTestManager(t, storage.NewMemoryTokenStore(), &mockRefresher{})

	tests := []struct {
		name    string
		token   string
		expired bool
	}{
		{"expires in the future", signedToken(t, time.Now().Add(time.Hour)), false},
		{"expired in the past", signedToken(t, time.Now().Add(-time.Hour)), true},
		{"inside the leeway window", signedToken(t, time.Now().Add(10*time.Second)), true},
		{"undecodable", "not-a-jwt", true},
		{"empty", "", true},
		{"missing exp claim", tokenWithoutExp(t), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, manager.IsExpired(tt.token))
		})
	}
}

func TestGetValidAccessToken_ReturnsCurrentToken(t *testing.T) {
	access := signedToken(t, time.Now().Add(time.Hour))
	store := seededStore(t, domain.TokenPair{AccessToken: access, RefreshToken: "r1"})
	refresher := &mockRefresher{}
	manager := newTestManager(t, store, refresher)

	got, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, access, got)
	assert.EqualValues(t, 0, refresher.calls.Load())
}

func TestGetValidAccessToken_RefreshesExpiredToken(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Hour))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	store := seededStore(t, domain.TokenPair{AccessToken: expired, RefreshToken: "r1"})
	refresher := &mockRefresher{result: &ports.AuthResult{AccessToken: fresh, RefreshToken: "r2"}}
	manager := newTestManager(t, store, refresher)

	got, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.EqualValues(t, 1, refresher.calls.Load())

	// The rotated refresh token is authoritative and must be persisted.
	assert.Equal(t, domain.TokenPair{AccessToken: fresh, RefreshToken: "r2"}, storedPair(t, store))
}

func TestGetValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Hour))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	store := seededStore(t, domain.TokenPair{AccessToken: expired, RefreshToken: "r1"})
	refresher := &mockRefresher{
		delay:  50 * time.Millisecond,
		result: &ports.AuthResult{AccessToken: fresh, RefreshToken: "r2"},
	}
	manager := newTestManager(t, store, refresher)

	const callers = 25
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.GetValidAccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fresh, results[i])
	}
	assert.EqualValues(t, 1, refresher.calls.Load())
}

func TestRefreshAccessToken_NoRefreshToken(t *testing.T) {
	refresher := &mockRefresher{}
	manager := newTestManager(t, storage.NewMemoryTokenStore(), refresher)

	_, err := manager.RefreshAccessToken(context.Background())
	require.ErrorIs(t, err, domain.ErrNoRefreshToken)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.EqualValues(t, 0, refresher.calls.Load())
}

func TestRefreshAccessToken_FailureEndsSession(t *testing.T) {
	expired := signedToken(t, time.Now().Add(-time.Hour))
	store := seededStore(t, domain.TokenPair{AccessToken: expired, RefreshToken: "r1"})
	refresher := &mockRefresher{err: errors.New("refresh token revoked")}
	manager := newTestManager(t, store, refresher)

	_, err := manager.GetValidAccessToken(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.True(t, storedPair(t, store).Empty())
	assert.False(t, manager.Authenticated())

	// The session is gone: further calls fail without touching the backend.
	_, err = manager.GetValidAccessToken(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	assert.EqualValues(t, 1, refresher.calls.Load())
}

func TestUpdateAndClearTokens(t *testing.T) {
	store := storage.NewMemoryTokenStore()
	manager := newTestManager(t, store, &mockRefresher{})

	require.NoError(t, manager.UpdateTokens("a1", "r1"))
	assert.True(t, manager.Authenticated())
	assert.Equal(t, domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}, storedPair(t, store))

	require.NoError(t, manager.ClearTokens())
	require.NoError(t, manager.ClearTokens())
	assert.False(t, manager.Authenticated())
	assert.True(t, storedPair(t, store).Empty())
}
