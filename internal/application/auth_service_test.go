package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

func newAuthFixture() (*AuthService, *fakeBackend, *SessionStore, *ResourceCache, *recordingNotifier) {
	be := newFakeBackend()
	sessions := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	cache := NewResourceCache(domain.NopLogger{}, nil)
	notifier := &recordingNotifier{}
	return NewAuthService(domain.NopLogger{}, be, sessions, cache, notifier), be, sessions, cache, notifier
}

func TestAuthService_LoginEstablishesSession(t *testing.T) {
	svc, be, sessions, _, notifier := newAuthFixture()
	ctx := context.Background()

	user, err := svc.Login(ctx, domain.LoginInput{Email: " ada@example.com ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, sessions.IsAuthenticated())

	me, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", me.DisplayName())
	assert.Zero(t, be.count("me"), "login seeds the current user")
	assert.Equal(t, []string{msgLoginSuccess}, notifier.successes)
}

func TestAuthService_LoginValidatesBeforeCallingBackend(t *testing.T) {
	svc, be, _, _, notifier := newAuthFixture()
	_, err := svc.Login(context.Background(), domain.LoginInput{Email: "nope", Password: "short"})

	var fields domain.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "Email is invalid", fields["email"])
	assert.Equal(t, "Password must be at least 8 characters", fields["password"])
	assert.Zero(t, be.count("login"))
	assert.Len(t, notifier.failures, 1)
}

func TestAuthService_RegisterValidatesNames(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture()
	_, err := svc.Register(context.Background(), domain.RegisterInput{Email: "a@b.co", Password: "password1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_LogoutClearsEvenWhenBackendFails(t *testing.T) {
	svc, be, sessions, cache, _ := newAuthFixture()
	ctx := context.Background()
	_, err := svc.Login(ctx, domain.LoginInput{Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)

	be.fail("logout", errBoom)
	require.NoError(t, svc.Logout(ctx))
	assert.False(t, sessions.IsAuthenticated())
	assert.Zero(t, cache.Len())

	_, err = svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestAuthService_SessionExpiryClearsCache(t *testing.T) {
	svc, _, _, cache, notifier := newAuthFixture()
	cache.Set(domain.RecordKey(domain.ResourcePost, "1"), domain.Post{ID: 1})

	svc.OnSessionExpired(context.Background(), domain.ErrSessionUnrecoverable)
	assert.Zero(t, cache.Len())
	assert.Empty(t, notifier.failures, "the failed request's caller reports the expiry")
}

func TestAuthService_UserIsCached(t *testing.T) {
	svc, be, _, _, _ := newAuthFixture()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		u, err := svc.User(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "42", u.ID)
	}
	assert.Equal(t, 1, be.count("user"))
}
