package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

type failingStore struct {
	memory.CredentialStore
	saveErr error
}

func (f *failingStore) Save(ctx context.Context, pair domain.CredentialPair) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.CredentialStore.Save(ctx, pair)
}

func signedAccess(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSessionStore_RestoreWithoutCredentials(t *testing.T) {
	s := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())

	sess, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated)
	assert.Empty(t, s.AccessCredential())
}

func TestSessionStore_RestoreReadsUserIDClaim(t *testing.T) {
	store := memory.NewCredentialStore()
	access := signedAccess(t, jwt.MapClaims{"userId": float64(42), "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, store.Save(context.Background(), domain.CredentialPair{AccessCredential: access, RefreshCredential: "r1"}))

	s := NewSessionStore(domain.NopLogger{}, store)
	sess, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)
	assert.Equal(t, "42", sess.UserID)
	assert.Equal(t, "r1", s.RefreshCredential())
}

func TestSessionStore_RestoreOpaqueCredential(t *testing.T) {
	store := memory.NewCredentialStore()
	require.NoError(t, store.Save(context.Background(), domain.CredentialPair{AccessCredential: "opaque", RefreshCredential: "r"}))

	s := NewSessionStore(domain.NopLogger{}, store)
	sess, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated)
	assert.Empty(t, sess.UserID)
}

func TestSessionStore_EstablishAndClear(t *testing.T) {
	store := memory.NewCredentialStore()
	s := NewSessionStore(domain.NopLogger{}, store)
	ctx := context.Background()

	err := s.Establish(ctx, domain.AuthResult{
		User:        domain.User{ID: "7", FirstName: "Ada"},
		Credentials: domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"},
	})
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "7", s.UserID())

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.IsAuthenticated())
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNoCredentials)
}

func TestSessionStore_EstablishRejectsPartialPair(t *testing.T) {
	s := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	err := s.Establish(context.Background(), domain.AuthResult{
		Credentials: domain.CredentialPair{AccessCredential: "a"},
	})
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
	assert.False(t, s.IsAuthenticated())
}

func TestSessionStore_ReplaceKeepsMemoryWhenPersistFails(t *testing.T) {
	store := &failingStore{}
	s := NewSessionStore(domain.NopLogger{}, store)
	ctx := context.Background()
	require.NoError(t, s.Establish(ctx, domain.AuthResult{Credentials: domain.CredentialPair{AccessCredential: "a1", RefreshCredential: "r1"}}))

	store.saveErr = errors.New("disk full")
	err := s.ReplaceCredentials(ctx, domain.CredentialPair{AccessCredential: "a2", RefreshCredential: "r2"})
	require.Error(t, err)
	assert.Equal(t, domain.CredentialPair{AccessCredential: "a2", RefreshCredential: "r2"}, s.Credentials())
}

func TestSessionStore_PairIsNeverTorn(t *testing.T) {
	s := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	ctx := context.Background()
	require.NoError(t, s.ReplaceCredentials(ctx, domain.CredentialPair{AccessCredential: "a0", RefreshCredential: "r0"}))

	pairs := []domain.CredentialPair{
		{AccessCredential: "a0", RefreshCredential: "r0"},
		{AccessCredential: "a1", RefreshCredential: "r1"},
	}
	valid := map[domain.CredentialPair]bool{pairs[0]: true, pairs[1]: true}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.ReplaceCredentials(ctx, pairs[i%2])
		}
	}()

	for i := 0; i < 5000; i++ {
		got := s.Credentials()
		require.True(t, valid[got], "observed torn pair %+v", got)
	}
	close(stop)
	wg.Wait()
}
