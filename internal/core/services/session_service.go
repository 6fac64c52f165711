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

type sessionService struct {
	api    ports.AuthAPI
	tokens ports.TokenManager
	feed   ports.FeedService
	log    *zap.Logger

	mu   sync.Mutex
	user *domain.User
}

func NewSessionService(api ports.AuthAPI, tokens ports.TokenManager, feed ports.FeedService, log *zap.Logger) ports.SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &sessionService{
		api:    api,
		tokens: tokens,
		feed:   feed,
		log:    log,
	}
}

func (s *sessionService) Register(ctx context.Context, input ports.RegisterInput) (domain.Session, error) {
	result, err := s.api.Register(ctx, input)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, result)
}

func (s *sessionService) Login(ctx context.Context, input ports.LoginInput) (domain.Session, error) {
	result, err := s.api.Login(ctx, input)
	if err != nil {
		return domain.Session{}, err
	}
	return s.establish(ctx, result)
}

func (s *sessionService) Logout() error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	s.feed.ClearUserState()
	if err := s.tokens.ClearTokens(); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.log.Info("logged out")
	return nil
}

// Resume rebuilds a session from persisted tokens. An unauthenticated start
// is not an error; a stale session that fails the profile fetch ends up
// logged out, exactly as a rejected refresh would.
func (s *sessionService) Resume(ctx context.Context) (domain.Session, error) {
	if !s.tokens.Authenticated() {
		return domain.Session{}, nil
	}

	if _, err := s.Profile(ctx); err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return domain.Session{}, nil
		}
		// Transient failure: keep the session, the user is just not loaded.
		return s.Current(), err
	}

	if err := s.feed.LoadLikes(ctx); err != nil {
		s.log.Warn("failed to rebuild like set", zap.Error(err))
	}
	return s.Current(), nil
}

func (s *sessionService) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Session{
		User:            s.user,
		IsAuthenticated: s.tokens.Authenticated(),
	}
}

func (s *sessionService) Profile(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user != nil {
		return user, nil
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			if logoutErr := s.Logout(); logoutErr != nil {
				s.log.Warn("failed to clear expired session", zap.Error(logoutErr))
			}
		}
		return nil, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

func (s *sessionService) VerifyEmail(ctx context.Context, token string) (*ports.VerifyEmailResult, error) {
	return s.api.VerifyEmail(ctx, token)
}

func (s *sessionService) establish(ctx context.Context, result *ports.AuthResult) (domain.Session, error) {
	if err := s.tokens.UpdateTokens(result.AccessToken, result.RefreshToken); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	s.user = result.User
	s.mu.Unlock()

	// Like state is rebuilt from server truth on every session start.
	if err := s.feed.LoadLikes(ctx); err != nil {
		s.log.Warn("failed to rebuild like set", zap.Error(err))
	}

	s.log.Info("session established", zap.String("user_id", result.User.ID))
	return s.Current(), nil
}
