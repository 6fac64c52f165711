package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedapp/feedclient/internal/core/domain"
	"github.com/feedapp/feedclient/internal/core/ports"
)

func TestRegisterLoginLogout(t *testing.T) {
	s := newStack(t)
	ctx := testContext(t)

	session, err := s.session.Register(ctx, ports.RegisterInput{
		Username: "ann",
		Email:    "ann@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, "ann", session.User.Username)

	// The pair is persisted for the next process.
	pair, err := s.store.Load()
	require.NoError(t, err)
	assert.False(t, pair.Empty())

	user, err := s.session.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)

	require.NoError(t, s.session.Logout())
	assert.False(t, s.session.Current().IsAuthenticated)

	pair, err = s.store.Load()
	require.NoError(t, err)
	assert.True(t, pair.Empty())

	// Fresh login with the same credentials works.
	session, err = s.session.Login(ctx, ports.LoginInput{Email: "ann@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s := newStack(t)
	ctx := testContext(t)
	s.register(t, ctx, "ann")

	_, err := s.session.Register(ctx, ports.RegisterInput{
		Username: "ann",
		Email:    "other@example.com",
		Password: "hunter22",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newStack(t)
	ctx := testContext(t)
	s.register(t, ctx, "ann")
	require.NoError(t, s.session.Logout())

	_, err := s.session.Login(ctx, ports.LoginInput{Email: "ann@example.com", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, s.session.Current().IsAuthenticated)
}

func TestResume_FromPersistedTokens(t *testing.T) {
	s := newStack(t)
	ctx := testContext(t)
	s.register(t, ctx, "ann")

	// A second stack over the same token directory models a process restart.
	restored := newStackWith(t, s.backend, s.tokenDir)

	session, err := restored.session.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, "ann", session.User.Username)
}

func TestVerifyEmail(t *testing.T) {
	s := newStack(t)
	ctx := testContext(t)

	result, err := s.session.VerifyEmail(ctx, "some-token")
	require.NoError(t, err)
	assert.True(t, result.Success)
}
