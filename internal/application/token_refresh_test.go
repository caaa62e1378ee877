package application

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	pair    domain.CredentialPair
	err     error
	seen    []string
	mu      sync.Mutex
}

func (f *fakeRefresher) RefreshCredentials(ctx context.Context, refresh string) (domain.CredentialPair, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, refresh)
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.CredentialPair{}, ctx.Err()
		}
	}
	return f.pair, f.err
}

type expiryRecorder struct {
	mu     sync.Mutex
	causes []error
}

func (r *expiryRecorder) OnSessionExpired(_ context.Context, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes = append(r.causes, cause)
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.causes)
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

// acceptOnly answers 200 for the accepted credential and 401 otherwise.
func acceptOnly(accepted string, sends *atomic.Int32) func(context.Context, string) (*http.Response, error) {
	return func(_ context.Context, access string) (*http.Response, error) {
		if sends != nil {
			sends.Add(1)
		}
		if access == accepted {
			return response(http.StatusOK), nil
		}
		return response(http.StatusUnauthorized), nil
	}
}

func newTestCoordinator(t *testing.T, refresher *fakeRefresher, listener domain.SessionListener) (*TokenRefreshCoordinator, *SessionStore) {
	t.Helper()
	sessions := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	require.NoError(t, sessions.Establish(context.Background(), domain.AuthResult{
		User:        domain.User{ID: "1"},
		Credentials: domain.CredentialPair{AccessCredential: "old-access", RefreshCredential: "old-refresh"},
	}))
	return NewTokenRefreshCoordinator(domain.NopLogger{}, sessions, refresher, listener, time.Second), sessions
}

func TestIntercept_HungRefreshTimesOut(t *testing.T) {
	const n = 3
	refresher := &fakeRefresher{release: make(chan struct{})} // never released
	expiries := &expiryRecorder{}
	sessions := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	require.NoError(t, sessions.Establish(context.Background(), domain.AuthResult{
		User:        domain.User{ID: "1"},
		Credentials: domain.CredentialPair{AccessCredential: "old-access", RefreshCredential: "old-refresh"},
	}))
	coord := NewTokenRefreshCoordinator(domain.NopLogger{}, sessions, refresher, expiries, 80*time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, n)
	intercept := func(i int) {
		defer wg.Done()
		call := &domain.Call{Method: http.MethodGet, Path: "/posts", Credential: "old-access", Send: acceptOnly("new-access", nil)}
		_, errs[i] = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
	}

	wg.Add(1)
	go intercept(0)
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)
	for i := 1; i < n; i++ {
		wg.Add(1)
		go intercept(i)
	}
	require.Eventually(t, func() bool { return coord.QueueLength() == n-1 }, 60*time.Millisecond, time.Millisecond)
	wg.Wait()

	for i, err := range errs {
		assert.ErrorIs(t, err, domain.ErrSessionUnrecoverable, "request %d", i)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "request %d", i)
	}
	assert.EqualValues(t, 1, refresher.calls.Load())
	assert.Equal(t, 1, expiries.count())
	assert.False(t, sessions.IsAuthenticated())
	assert.False(t, coord.Refreshing())
	assert.Zero(t, coord.QueueLength())
}

func TestIntercept_PassesThroughNon401(t *testing.T) {
	coord, _ := newTestCoordinator(t, &fakeRefresher{}, nil)
	resp := response(http.StatusNotFound)

	got, err := coord.Intercept(context.Background(), &domain.Call{}, resp)
	require.NoError(t, err)
	assert.Same(t, resp, got)
}

func TestIntercept_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 8
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		pair:    domain.CredentialPair{AccessCredential: "new-access", RefreshCredential: "new-refresh"},
	}
	coord, sessions := newTestCoordinator(t, refresher, nil)

	var wg sync.WaitGroup
	results := make([]*http.Response, n)
	errs := make([]error, n)

	// Leader first, so the others find a refresh running.
	wg.Add(1)
	go func() {
		defer wg.Done()
		call := &domain.Call{Method: http.MethodGet, Path: "/posts", Credential: "old-access", Send: acceptOnly("new-access", nil)}
		results[0], errs[0] = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			call := &domain.Call{Method: http.MethodGet, Path: "/posts", Credential: "old-access", Send: acceptOnly("new-access", nil)}
			results[i], errs[i] = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
		}(i)
	}
	require.Eventually(t, func() bool { return coord.QueueLength() == n-1 }, time.Second, time.Millisecond)

	close(refresher.release)
	wg.Wait()

	assert.EqualValues(t, 1, refresher.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "request %d", i)
		assert.Equal(t, http.StatusOK, results[i].StatusCode)
	}
	assert.Equal(t, "new-refresh", sessions.RefreshCredential())
	assert.False(t, coord.Refreshing())
	assert.Zero(t, coord.QueueLength())
}

func TestIntercept_RetriedCallIsNotQueuedAgain(t *testing.T) {
	refresher := &fakeRefresher{pair: domain.CredentialPair{AccessCredential: "x", RefreshCredential: "y"}}
	coord, _ := newTestCoordinator(t, refresher, nil)

	call := &domain.Call{Method: http.MethodGet, Path: "/auth/me", Retried: true, Send: acceptOnly("x", nil)}
	_, err := coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))

	assert.ErrorIs(t, err, domain.ErrCredentialExpired)
	assert.Zero(t, refresher.calls.Load())
}

func TestIntercept_ReplayRejectedTwiceIsTerminal(t *testing.T) {
	refresher := &fakeRefresher{pair: domain.CredentialPair{AccessCredential: "new-access", RefreshCredential: "new-refresh"}}
	coord, sessions := newTestCoordinator(t, refresher, nil)

	var sends atomic.Int32
	call := &domain.Call{Method: http.MethodGet, Path: "/posts/1", Credential: "old-access", Send: acceptOnly("never", &sends)}
	_, err := coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))

	assert.ErrorIs(t, err, domain.ErrCredentialExpired)
	assert.EqualValues(t, 1, sends.Load())
	assert.EqualValues(t, 1, refresher.calls.Load())
	assert.True(t, sessions.IsAuthenticated())
}

func TestIntercept_MalformedRefreshPayloadFailsClosed(t *testing.T) {
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		pair:    domain.CredentialPair{AccessCredential: "only-access"},
	}
	listener := &expiryRecorder{}
	coord, sessions := newTestCoordinator(t, refresher, listener)

	var wg sync.WaitGroup
	var leaderErr, waiterErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		call := &domain.Call{Credential: "old-access", Send: acceptOnly("only-access", nil)}
		_, leaderErr = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		call := &domain.Call{Credential: "old-access", Send: acceptOnly("only-access", nil)}
		_, waiterErr = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
	}()
	require.Eventually(t, func() bool { return coord.QueueLength() == 1 }, time.Second, time.Millisecond)

	close(refresher.release)
	wg.Wait()

	assert.ErrorIs(t, leaderErr, domain.ErrSessionUnrecoverable)
	assert.ErrorIs(t, leaderErr, domain.ErrMalformedEnvelope)
	assert.ErrorIs(t, waiterErr, domain.ErrSessionUnrecoverable)
	assert.False(t, sessions.IsAuthenticated())
	assert.Empty(t, sessions.AccessCredential())
	assert.Equal(t, 1, listener.count())
	assert.False(t, coord.Refreshing())
}

func TestIntercept_RejectedRefreshClearsSession(t *testing.T) {
	refresher := &fakeRefresher{err: &domain.APIError{Status: http.StatusUnauthorized, Code: domain.ErrCodeCredentialExpired}}
	listener := &expiryRecorder{}
	coord, sessions := newTestCoordinator(t, refresher, listener)

	call := &domain.Call{Credential: "old-access", Send: acceptOnly("new", nil)}
	_, err := coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))

	assert.ErrorIs(t, err, domain.ErrSessionUnrecoverable)
	var apiErr *domain.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.False(t, sessions.IsAuthenticated())
	assert.Equal(t, 1, listener.count())
}

func TestIntercept_NoRefreshCredential(t *testing.T) {
	refresher := &fakeRefresher{}
	sessions := NewSessionStore(domain.NopLogger{}, memory.NewCredentialStore())
	coord := NewTokenRefreshCoordinator(domain.NopLogger{}, sessions, refresher, nil, time.Second)

	_, err := coord.Intercept(context.Background(), &domain.Call{Send: acceptOnly("x", nil)}, response(http.StatusUnauthorized))
	assert.ErrorIs(t, err, domain.ErrSessionUnrecoverable)
	assert.Zero(t, refresher.calls.Load())
}

func TestIntercept_StaleCredentialReplaysWithoutRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	coord, sessions := newTestCoordinator(t, refresher, nil)
	require.NoError(t, sessions.ReplaceCredentials(context.Background(), domain.CredentialPair{AccessCredential: "rotated", RefreshCredential: "r2"}))

	call := &domain.Call{Credential: "old-access", Send: acceptOnly("rotated", nil)}
	resp, err := coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, refresher.calls.Load())
}

func TestIntercept_WaiterHonoursItsContext(t *testing.T) {
	refresher := &fakeRefresher{
		release: make(chan struct{}),
		pair:    domain.CredentialPair{AccessCredential: "new-access", RefreshCredential: "new-refresh"},
	}
	coord, _ := newTestCoordinator(t, refresher, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		call := &domain.Call{Credential: "old-access", Send: acceptOnly("new-access", nil)}
		_, _ = coord.Intercept(context.Background(), call, response(http.StatusUnauthorized))
	}()
	require.Eventually(t, coord.Refreshing, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	call := &domain.Call{Credential: "old-access", Send: acceptOnly("new-access", nil)}
	_, err := coord.Intercept(ctx, call, response(http.StatusUnauthorized))
	assert.ErrorIs(t, err, context.Canceled)

	close(refresher.release)
	<-done
	assert.EqualValues(t, 1, refresher.calls.Load())
}

type mutexLock struct {
	mu       sync.Mutex
	acquired atomic.Int32
}

func (l *mutexLock) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	l.acquired.Add(1)
	return l.mu.Unlock, nil
}

func TestIntercept_SharedStoreAdoptsPairRotatedByAnotherProcess(t *testing.T) {
	store := memory.NewCredentialStore()
	lock := &mutexLock{}
	initial := domain.AuthResult{
		User:        domain.User{ID: "1"},
		Credentials: domain.CredentialPair{AccessCredential: "old-access", RefreshCredential: "old-refresh"},
	}

	newProcess := func(refresher *fakeRefresher) (*TokenRefreshCoordinator, *SessionStore) {
		sessions := NewSessionStore(domain.NopLogger{}, store)
		require.NoError(t, sessions.Establish(context.Background(), initial))
		coord := NewTokenRefreshCoordinator(domain.NopLogger{}, sessions, refresher, nil, time.Second)
		coord.UseRefreshLock(lock)
		return coord, sessions
	}

	rotated := domain.CredentialPair{AccessCredential: "new-access", RefreshCredential: "new-refresh"}
	refresherA := &fakeRefresher{pair: rotated}
	refresherB := &fakeRefresher{err: errors.New("refresh credential already used")}
	coordA, _ := newProcess(refresherA)
	coordB, sessionsB := newProcess(refresherB)

	_, err := coordA.Intercept(context.Background(), &domain.Call{Credential: "old-access", Send: acceptOnly("new-access", nil)}, response(http.StatusUnauthorized))
	require.NoError(t, err)

	resp, err := coordB.Intercept(context.Background(), &domain.Call{Credential: "old-access", Send: acceptOnly("new-access", nil)}, response(http.StatusUnauthorized))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, int32(1), refresherA.calls.Load())
	assert.Equal(t, int32(0), refresherB.calls.Load())
	assert.Equal(t, rotated, sessionsB.Credentials())
	assert.Equal(t, int32(2), lock.acquired.Load())
}

func TestIntercept_LockedRefreshWithoutRotationCallsRefresher(t *testing.T) {
	refresher := &fakeRefresher{pair: domain.CredentialPair{AccessCredential: "new-access", RefreshCredential: "new-refresh"}}
	coord, _ := newTestCoordinator(t, refresher, nil)
	coord.UseRefreshLock(&mutexLock{})

	_, err := coord.Intercept(context.Background(), &domain.Call{Credential: "old-access", Send: acceptOnly("new-access", nil)}, response(http.StatusUnauthorized))
	require.NoError(t, err)
	assert.Equal(t, int32(1), refresher.calls.Load())
}
