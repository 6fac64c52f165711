package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedapp/feedclient/internal/adapters/rest"
	"github.com/feedapp/feedclient/internal/adapters/storage"
	"github.com/feedapp/feedclient/internal/core/ports"
	"github.com/feedapp/feedclient/internal/core/services"
)

// stack is the full client wired exactly as the binary wires it, against a
// fake backend and a token file in a test-scoped directory.
type stack struct {
	backend  *fakeBackend
	tokenDir string
	store    *storage.FileTokenStore
	tokens   *services.TokenManager
	api      *rest.AuthClient
	feed     ports.FeedService
	comments ports.CommentService
	session  ports.SessionService
}

func newStack(t *testing.T) *stack {
	t.Helper()

	backend := newFakeBackend()
	t.Cleanup(backend.Close)
	return newStackWith(t, backend, t.TempDir())
}

// newStackWith builds a stack over an existing backend and token directory,
// which is how tests model a second process resuming a persisted session.
func newStackWith(t *testing.T, backend *fakeBackend, tokenDir string) *stack {
	t.Helper()

	store, err := storage.NewFileTokenStore(tokenDir)
	require.NoError(t, err)

	client := rest.NewClient(backend.URL(), nil)
	tokens, err := services.NewTokenManager(store, client, nil)
	require.NoError(t, err)
	api := rest.NewAuthClient(client, tokens)

	feed := services.NewFeedService(api, api, nil)
	comments := services.NewCommentService(api, feed, nil)
	session := services.NewSessionService(api, tokens, feed, nil)

	return &stack{
		backend:  backend,
		tokenDir: tokenDir,
		store:    store,
		tokens:   tokens,
		api:      api,
		feed:     feed,
		comments: comments,
		session:  session,
	}
}

func (s *stack) register(t *testing.T, ctx context.Context, username string) {
	t.Helper()
	_, err := s.session.Register(ctx, ports.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
}

// seedExpiredAccess replaces the held pair with an already-expired access
// token and a refresh token the backend still accepts.
func (s *stack) seedExpiredAccess(t *testing.T) {
	t.Helper()
	session := s.session.Current()
	require.NotNil(t, session.User)

	access, refresh := s.backend.issueTokens(session.User.ID, -time.Minute)
	require.NoError(t, s.tokens.UpdateTokens(access, refresh))
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
