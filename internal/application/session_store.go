package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// SessionStore owns the current Session and is the source of truth for
// "is authenticated". The credential pair is swapped under one lock and
// persisted with one write, so no reader sees half of a rotation.
type SessionStore struct {
	logger domain.Logger
	store  domain.CredentialStore

	mu      sync.RWMutex
	session domain.Session
}

// NewSessionStore creates an unauthenticated store backed by store.
func NewSessionStore(logger domain.Logger, store domain.CredentialStore) *SessionStore {
	if logger == nil {
		panic("logger is nil in NewSessionStore")
	}
	if store == nil {
		panic("credential store is nil in NewSessionStore")
	}
	return &SessionStore{logger: logger, store: store}
}

// Restore loads the persisted credential pair, the only durable client state.
// A missing pair leaves the store unauthenticated and is not an error.
func (s *SessionStore) Restore(ctx context.Context) (domain.Session, error) {
	pair, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNoCredentials) || (err == nil && pair.IsZero()) {
		s.logger.Debug(ctx, "No persisted credentials; starting unauthenticated")
		return s.Current(), nil
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to load persisted credentials", "error", err)
		return s.Current(), fmt.Errorf("failed to restore session: %w", err)
	}

	userID := ""
	if claims, err := PeekCredentialClaims(pair.AccessCredential); err == nil {
		userID = claims.UserID
	}

	s.mu.Lock()
	s.session = domain.Session{
		UserID:          userID,
		Credentials:     pair,
		IsAuthenticated: true,
	}
	restored := s.session
	s.mu.Unlock()

	s.logger.Debug(ctx, "Session restored from persisted credentials", "user_id", userID)
	return restored, nil
}

// Persisted reads the pair currently in the durable store without touching
// the in-memory session.
func (s *SessionStore) Persisted(ctx context.Context) (domain.CredentialPair, error) {
	return s.store.Load(ctx)
}

// Establish installs the session produced by login or registration.
func (s *SessionStore) Establish(ctx context.Context, result domain.AuthResult) error {
	if result.Credentials.AccessCredential == "" || result.Credentials.RefreshCredential == "" {
		return fmt.Errorf("%w: auth result without a full credential pair", domain.ErrMalformedEnvelope)
	}
	if err := s.store.Save(ctx, result.Credentials); err != nil {
		s.logger.Error(ctx, "Failed to persist credentials after login", "error", err)
		return fmt.Errorf("failed to persist credentials: %w", err)
	}

	user := result.User
	s.mu.Lock()
	s.session = domain.Session{
		UserID:          user.ID,
		User:            &user,
		Credentials:     result.Credentials,
		IsAuthenticated: true,
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "Session established", "user_id", user.ID)
	return nil
}

// ReplaceCredentials swaps in a refreshed pair. Memory is updated even when
// persisting fails, because the backend has already rotated the pair; the
// persistence error is returned for the caller to log.
func (s *SessionStore) ReplaceCredentials(ctx context.Context, pair domain.CredentialPair) error {
	if pair.AccessCredential == "" || pair.RefreshCredential == "" {
		return fmt.Errorf("%w: refusing to store a partial credential pair", domain.ErrMalformedEnvelope)
	}

	s.mu.Lock()
	s.session.Credentials = pair
	s.session.IsAuthenticated = true
	s.mu.Unlock()

	if err := s.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}
	return nil
}

// SetUser records the profile returned by /auth/me.
func (s *SessionStore) SetUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.IsAuthenticated {
		return
	}
	s.session.User = &user
	s.session.UserID = user.ID
}

// Clear destroys the session in memory and in durable storage.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error(ctx, "Failed to clear persisted credentials", "error", err)
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Current returns a copy of the session.
func (s *SessionStore) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.session
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// Credentials returns the pair as one consistent snapshot.
func (s *SessionStore) Credentials() domain.CredentialPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Credentials
}

// AccessCredential implements domain.CredentialSource.
func (s *SessionStore) AccessCredential() string {
	return s.Credentials().AccessCredential
}

// RefreshCredential returns the current refresh credential, or "".
func (s *SessionStore) RefreshCredential() string {
	return s.Credentials().RefreshCredential
}

// IsAuthenticated reports whether an access credential is held.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated
}

// UserID returns the current user's id, or "" when unknown.
func (s *SessionStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.UserID
}
