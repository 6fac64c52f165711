package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

type mockAuthAPI struct {
	registerResult *ports.AuthResult
	registerErr    error
	loginResult    *ports.AuthResult
	loginErr       error
	profileResult  *domain.User
	profileErr     error
	profileCalls   int
}

func (m *mockAuthAPI) Register(ctx context.Context, input ports.RegisterInput) (*ports.AuthResult, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return m.registerResult, nil
}

func (m *mockAuthAPI) Login(ctx context.Context, input ports.LoginInput) (*ports.AuthResult, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.loginResult, nil
}

func (m *mockAuthAPI) Profile(ctx context.Context) (*domain.User, error) {
	m.profileCalls++
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profileResult, nil
}

func (m *mockAuthAPI) VerifyEmail(ctx context.Context, token string) (*ports.VerifyEmailResult, error) {
	return &ports.VerifyEmailResult{Success: true}, nil
}

// fakeSessionTokens tracks the held pair like the real manager but never
// touches a backend.
type fakeSessionTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (f *fakeSessionTokens) UpdateTokens(access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = access, refresh
	return nil
}

func (f *fakeSessionTokens) ClearTokens() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = "", ""
	return nil
}

func (f *fakeSessionTokens) IsExpired(token string) bool { return false }

func (f *fakeSessionTokens) GetValidAccessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.access == "" {
		return "", domain.ErrAuthExpired
	}
	return f.access, nil
}

func (f *fakeSessionTokens) RefreshAccessToken(ctx context.Context) (string, error) {
	return f.GetValidAccessToken(ctx)
}

func (f *fakeSessionTokens) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access != "" || f.refresh != ""
}

func newSessionFixture(api *mockAuthAPI) (ports.SessionService, *fakeSessionTokens, ports.FeedService) {
	tokens := &fakeSessionTokens{}
	feed := NewFeedService(&mockPostAPI{}, &mockLikeAPI{userLikes: []string{"liked-post"}}, nil)
	return NewSessionService(api, tokens, feed, nil), tokens, feed
}

func TestLogin_EstablishesSession(t *testing.T) {
	api := &mockAuthAPI{
		loginResult: &ports.AuthResult{
			User:         &domain.User{ID: "u1", Username: "ann"},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		},
	}
	session, tokens, feed := newSessionFixture(api)

	result, err := session.Login(context.Background(), ports.LoginInput{Email: "ann@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, result.IsAuthenticated)
	assert.Equal(t, "ann", result.User.Username)
	assert.Equal(t, "access-1", tokens.access)
	assert.Equal(t, "refresh-1", tokens.refresh)
	assert.True(t, feed.Liked("liked-post"))
}

func TestLogin_FailureLeavesNoSession(t *testing.T) {
	api := &mockAuthAPI{loginErr: domain.ErrValidation}
	session, tokens, _ := newSessionFixture(api)

	_, err := session.Login(context.Background(), ports.LoginInput{Email: "x", Password: "bad"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, tokens.Authenticated())
	assert.False(t, session.Current().IsAuthenticated)
}

func TestRegister_EstablishesSession(t *testing.T) {
	api := &mockAuthAPI{
		registerResult: &ports.AuthResult{
			User:         &domain.User{ID: "u1", Username: "ann"},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		},
	}
	session, _, _ := newSessionFixture(api)

	result, err := session.Register(context.Background(), ports.RegisterInput{Username: "ann", Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, result.IsAuthenticated)
}

func TestLogout_ClearsEverything(t *testing.T) {
	api := &mockAuthAPI{
		loginResult: &ports.AuthResult{
			User:         &domain.User{ID: "u1", Username: "ann"},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		},
	}
	session, tokens, feed := newSessionFixture(api)

	_, err := session.Login(context.Background(), ports.LoginInput{Email: "a", Password: "b"})
	require.NoError(t, err)

	require.NoError(t, session.Logout())
	assert.False(t, tokens.Authenticated())
	assert.False(t, session.Current().IsAuthenticated)
	assert.Nil(t, session.Current().User)
	assert.False(t, feed.Liked("liked-post"))
}

func TestResume_WithoutTokensIsAnonymous(t *testing.T) {
	session, _, _ := newSessionFixture(&mockAuthAPI{})

	result, err := session.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, result.IsAuthenticated)
	assert.Nil(t, result.User)
}

func TestResume_RestoresUserFromProfile(t *testing.T) {
	api := &mockAuthAPI{profileResult: &domain.User{ID: "u1", Username: "ann"}}
	session, tokens, feed := newSessionFixture(api)
	require.NoError(t, tokens.UpdateTokens("access-1", "refresh-1"))

	result, err := session.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsAuthenticated)
	assert.Equal(t, "ann", result.User.Username)
	assert.True(t, feed.Liked("liked-post"))
}

func TestResume_ExpiredSessionEndsLoggedOut(t *testing.T) {
	api := &mockAuthAPI{profileErr: domain.ErrAuthExpired}
	session, tokens, _ := newSessionFixture(api)
	require.NoError(t, tokens.UpdateTokens("stale", "stale"))

	result, err := session.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, result.IsAuthenticated)
	assert.False(t, tokens.Authenticated())
}

func TestResume_TransientFailureKeepsTokens(t *testing.T) {
	api := &mockAuthAPI{profileErr: errors.New("connection refused")}
	session, tokens, _ := newSessionFixture(api)
	require.NoError(t, tokens.UpdateTokens("access-1", "refresh-1"))

	result, err := session.Resume(context.Background())
	require.Error(t, err)
	assert.True(t, tokens.Authenticated())
	assert.Nil(t, result.User)
}

func TestProfile_CachesUser(t *testing.T) {
	api := &mockAuthAPI{profileResult: &domain.User{ID: "u1", Username: "ann"}}
	session, tokens, _ := newSessionFixture(api)
	require.NoError(t, tokens.UpdateTokens("access-1", "refresh-1"))

	_, err := session.Profile(context.Background())
	require.NoError(t, err)
	_, err = session.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.profileCalls)
}

var _ ports.AuthAPI = (*mockAuthAPI)(nil)
var _ ports.TokenManager = (*fakeSessionTokens)(nil)
