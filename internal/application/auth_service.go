package application

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

const (
	msgLoginSuccess    = "Login successful!"
	msgRegisterSuccess = "Registration successful!"
	msgLogoutSuccess   = "Logged out successfully!"
)

// AuthService drives the session lifecycle: register, login, restore,
// logout, and the forced logout that follows an unrecoverable refresh.
type AuthService struct {
	logger   domain.Logger
	api      domain.AuthAPI
	sessions *SessionStore
	cache    *ResourceCache
	notifier domain.Notifier
}

// NewAuthService creates a new AuthService. notifier may be nil.
func NewAuthService(logger domain.Logger, api domain.AuthAPI, sessions *SessionStore, cache *ResourceCache, notifier domain.Notifier) *AuthService {
	if logger == nil {
		panic("logger is nil in NewAuthService")
	}
	if api == nil {
		panic("auth api is nil in NewAuthService")
	}
	if sessions == nil {
		panic("session store is nil in NewAuthService")
	}
	if cache == nil {
		panic("resource cache is nil in NewAuthService")
	}
	return &AuthService{
		logger:   logger,
		api:      api,
		sessions: sessions,
		cache:    cache,
		notifier: notifier,
	}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in domain.RegisterInput) (domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return domain.User{}, s.failure(ctx, err)
	}
	res, err := s.api.Register(ctx, in)
	if err != nil {
		s.logger.Warn(ctx, "Registration rejected", "email", in.Email, "error", err)
		return domain.User{}, s.failure(ctx, err)
	}
	if err := s.begin(ctx, res); err != nil {
		return domain.User{}, s.failure(ctx, err)
	}
	s.success(ctx, msgRegisterSuccess)
	return res.User, nil
}

// Login signs in with email and password.
func (s *AuthService) Login(ctx context.Context, in domain.LoginInput) (domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return domain.User{}, s.failure(ctx, err)
	}
	res, err := s.api.Login(ctx, in)
	if err != nil {
		s.logger.Warn(ctx, "Login rejected", "email", in.Email, "error", err)
		return domain.User{}, s.failure(ctx, err)
	}
	if err := s.begin(ctx, res); err != nil {
		return domain.User{}, s.failure(ctx, err)
	}
	s.success(ctx, msgLoginSuccess)
	return res.User, nil
}

func (s *AuthService) begin(ctx context.Context, res domain.AuthResult) error {
	// Cached data belongs to whoever was signed in before.
	s.cache.Clear()
	if err := s.sessions.Establish(ctx, res); err != nil {
		return err
	}
	s.cache.Set(domain.RecordKey(domain.ResourceCurrentUser, ""), res.User)
	s.cache.Set(domain.RecordKey(domain.ResourceUser, res.User.ID), res.User)
	return nil
}

// Restore reloads the persisted session at startup.
func (s *AuthService) Restore(ctx context.Context) (domain.Session, error) {
	return s.sessions.Restore(ctx)
}

// Logout revokes the session server-side when possible and always clears it
// locally. A failing backend call does not keep the user signed in.
func (s *AuthService) Logout(ctx context.Context) error {
	if s.sessions.IsAuthenticated() {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn(ctx, "Backend logout failed; clearing local session anyway", "error", err)
		}
	}
	s.cache.Clear()
	if err := s.sessions.Clear(ctx); err != nil {
		return s.failure(ctx, err)
	}
	s.success(ctx, msgLogoutSuccess)
	return nil
}

// CurrentUser returns the signed-in user's profile.
func (s *AuthService) CurrentUser(ctx context.Context) (domain.User, error) {
	if !s.sessions.IsAuthenticated() {
		return domain.User{}, domain.ErrNotAuthenticated
	}
	user, err := cachedFetch(ctx, s.cache, domain.RecordKey(domain.ResourceCurrentUser, ""), s.api.Me)
	if err != nil {
		return domain.User{}, err
	}
	s.sessions.SetUser(user)
	return user, nil
}

// User returns any user's public profile.
func (s *AuthService) User(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return cachedFetch(ctx, s.cache, domain.RecordKey(domain.ResourceUser, id), func(ctx context.Context) (domain.User, error) {
		return s.api.UserByID(ctx, id)
	})
}

// OnSessionExpired implements domain.SessionListener. The session store is
// already cleared by the refresh coordinator; cached data goes with it.
// The failed request's caller reports the expiry to the user, after any
// rollback of its own, so nothing is notified here.
func (s *AuthService) OnSessionExpired(ctx context.Context, cause error) {
	s.cache.Clear()
	s.logger.Warn(ctx, "Session expired; login required", "cause", cause)
}

func (s *AuthService) success(ctx context.Context, msg string) {
	if s.notifier != nil {
		s.notifier.Success(ctx, msg)
	}
}

func (s *AuthService) failure(ctx context.Context, err error) error {
	if s.notifier != nil {
		s.notifier.Failure(ctx, domain.UserMessage(err))
	}
	return err
}
