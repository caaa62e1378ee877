// Package memory holds process-local adapters, used for one-shot CLI runs
// with persistence disabled and in tests.
package memory

import (
	"context"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// CredentialStore keeps the pair in memory only.
type CredentialStore struct {
	mu    sync.Mutex
	pair  domain.CredentialPair
	saves int
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Load implements domain.CredentialStore.
func (s *CredentialStore) Load(_ context.Context) (domain.CredentialPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair.IsZero() {
		return domain.CredentialPair{}, domain.ErrNoCredentials
	}
	return s.pair, nil
}

// Save implements domain.CredentialStore.
func (s *CredentialStore) Save(_ context.Context, pair domain.CredentialPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.saves++
	return nil
}

// Clear implements domain.CredentialStore.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = domain.CredentialPair{}
	return nil
}

// Saves returns how many times Save was called.
func (s *CredentialStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
