package domain

import (
	"context"
)

// CredentialPair holds the opaque bearer tokens issued by the backend.
// The pair is always replaced as a whole; partial updates are not representable.
type CredentialPair struct {
	AccessCredential  string `json:"accessToken"`
	RefreshCredential string `json:"refreshToken"`
}

// IsZero reports whether the pair carries no access credential.
func (p CredentialPair) IsZero() bool {
	return p.AccessCredential == ""
}

// Session is the current user identity plus its credential pair.
// AccessCredential is non-empty iff IsAuthenticated is true.
type Session struct {
	UserID          string         `json:"userId"`
	User            *User          `json:"user,omitempty"`
	Credentials     CredentialPair `json:"credentials"`
	IsAuthenticated bool           `json:"isAuthenticated"`
}

// CredentialStore persists the credential pair, the only durable client-side state.
// Save must replace both credentials in a single write.
type CredentialStore interface {
	// Load returns the persisted pair, or a zero pair and ErrNoCredentials when nothing is stored.
	Load(ctx context.Context) (CredentialPair, error)
	Save(ctx context.Context, pair CredentialPair) error
	Clear(ctx context.Context) error
}

// SessionListener is told when the session becomes unrecoverable, the
// point where a browser client would send the user back to the login screen.
type SessionListener interface {
	OnSessionExpired(ctx context.Context, cause error)
}

// SessionListenerFunc adapts a function to SessionListener.
type SessionListenerFunc func(ctx context.Context, cause error)

// OnSessionExpired calls f.
func (f SessionListenerFunc) OnSessionExpired(ctx context.Context, cause error) {
	f(ctx, cause)
}

// RefreshLock serializes credential refreshes across processes sharing one
// CredentialStore, since a refresh credential is single-use.
type RefreshLock interface {
	// Acquire blocks until the lock is held or ctx ends. The returned
	// release func must be called exactly once.
	Acquire(ctx context.Context) (release func(), err error)
}
