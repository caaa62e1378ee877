// Package filestore persists the credential pair to a local file, the
// default durable store for the CLI.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/credcodec"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// CredentialStore keeps the pair in one file, replaced by rename so a crash
// mid-write leaves either the old pair or the new one.
type CredentialStore struct {
	path      string
	aesKeyHex string
	logger    domain.Logger

	mu sync.Mutex
}

// NewCredentialStore creates a store at path. aesKeyHex may be empty.
func NewCredentialStore(path, aesKeyHex string, logger domain.Logger) (*CredentialStore, error) {
	if path == "" {
		return nil, errors.New("auth.credential_file is empty")
	}
	return &CredentialStore{path: path, aesKeyHex: aesKeyHex, logger: logger}, nil
}

// Path returns the backing file.
func (s *CredentialStore) Path() string { return s.path }

// Load implements domain.CredentialStore.
func (s *CredentialStore) Load(ctx context.Context) (domain.CredentialPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.CredentialPair{}, domain.ErrNoCredentials
	}
	if err != nil {
		return domain.CredentialPair{}, fmt.Errorf("failed to read credential file %s: %w", s.path, err)
	}
	pair, err := credcodec.Decode(data, s.aesKeyHex)
	if err != nil {
		s.logger.Error(ctx, "Credential file is unreadable", "path", s.path, "error", err)
		return domain.CredentialPair{}, err
	}
	return pair, nil
}

// Save implements domain.CredentialStore.
func (s *CredentialStore) Save(ctx context.Context, pair domain.CredentialPair) error {
	payload, err := credcodec.Encode(pair, s.aesKeyHex)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	s.logger.Debug(ctx, "Stored credential pair", "path", s.path, "sealed", s.aesKeyHex != "")
	return nil
}

// Clear implements domain.CredentialStore.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}
