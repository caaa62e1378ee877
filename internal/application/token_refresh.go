package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// DefaultRefreshTimeout bounds a single refresh and every queued wait on it.
const DefaultRefreshTimeout = 15 * time.Second

type refreshState int

const (
	refreshIdle refreshState = iota
	refreshRunning
)

type refreshOutcome struct {
	accessCredential string
	err              error
}

// TokenRefreshCoordinator turns any number of concurrent 401 responses into a
// single refresh call. The first 401 leads the refresh; the others queue and
// are replayed, in arrival order, once it resolves.
type TokenRefreshCoordinator struct {
	logger    domain.Logger
	sessions  *SessionStore
	refresher domain.TokenRefresher
	listener  domain.SessionListener
	timeout   time.Duration
	lock      domain.RefreshLock

	mu    sync.Mutex
	state refreshState
	queue []chan refreshOutcome
}

// NewTokenRefreshCoordinator wires a coordinator. listener may be nil.
func NewTokenRefreshCoordinator(logger domain.Logger, sessions *SessionStore, refresher domain.TokenRefresher, listener domain.SessionListener, timeout time.Duration) *TokenRefreshCoordinator {
	if logger == nil {
		panic("logger is nil in NewTokenRefreshCoordinator")
	}
	if sessions == nil {
		panic("session store is nil in NewTokenRefreshCoordinator")
	}
	if refresher == nil {
		panic("token refresher is nil in NewTokenRefreshCoordinator")
	}
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &TokenRefreshCoordinator{
		logger:    logger,
		sessions:  sessions,
		refresher: refresher,
		listener:  listener,
		timeout:   timeout,
	}
}

// UseRefreshLock makes every refresh hold lock, for processes sharing one
// credential store. Call it before the coordinator sees traffic.
func (c *TokenRefreshCoordinator) UseRefreshLock(lock domain.RefreshLock) {
	c.lock = lock
}

// Refreshing reports whether a refresh is in flight.
func (c *TokenRefreshCoordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == refreshRunning
}

// QueueLength returns the number of calls parked behind the running refresh.
func (c *TokenRefreshCoordinator) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Intercept implements domain.ResponseInterceptor.
func (c *TokenRefreshCoordinator) Intercept(ctx context.Context, call *domain.Call, resp *http.Response) (*http.Response, error) {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discardBody(resp)

	if call.Retried {
		metrics.IncrementReplay("rejected")
		c.logger.Warn(ctx, "Request rejected again after credential refresh",
			"method", call.Method, "path", call.Path)
		return nil, fmt.Errorf("%w: %s %s rejected after refresh", domain.ErrCredentialExpired, call.Method, call.Path)
	}
	call.Retried = true

	c.mu.Lock()
	if c.state == refreshRunning {
		ch := make(chan refreshOutcome, 1)
		c.queue = append(c.queue, ch)
		position := len(c.queue)
		c.mu.Unlock()

		c.logger.Debug(ctx, "Queued request behind running credential refresh",
			"method", call.Method, "path", call.Path, "queue_position", position)
		access, err := c.await(ctx, ch)
		if err != nil {
			return nil, err
		}
		return c.replay(ctx, call, access)
	}

	// The call went out with an older credential than the one now held:
	// a refresh already completed in between, so just replay.
	if current := c.sessions.AccessCredential(); current != "" && call.Credential != "" && current != call.Credential {
		c.mu.Unlock()
		c.logger.Debug(ctx, "Credential already rotated; replaying without refresh",
			"method", call.Method, "path", call.Path)
		return c.replay(ctx, call, current)
	}

	c.state = refreshRunning
	c.mu.Unlock()

	access, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return c.replay(ctx, call, access)
}

func (c *TokenRefreshCoordinator) await(ctx context.Context, ch <-chan refreshOutcome) (string, error) {
	metrics.IncrementQueueWaiters()
	defer metrics.DecrementQueueWaiters()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.accessCredential, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("%w: gave up waiting for credential refresh after %s: %w", domain.ErrSessionUnrecoverable, c.timeout, context.DeadlineExceeded)
	}
}

// refresh runs the single refresh call. It always returns the coordinator to
// idle and always resolves every queued waiter, even if the refresher panics.
func (c *TokenRefreshCoordinator) refresh(ctx context.Context) (access string, err error) {
	started := time.Now()
	resolved := false
	defer func() {
		if resolved {
			return
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: credential refresh panicked: %v", domain.ErrSessionUnrecoverable, r)
		} else if err == nil {
			err = fmt.Errorf("%w: credential refresh ended without result", domain.ErrSessionUnrecoverable)
		}
		c.fail(ctx, err)
	}()

	// The refresh outlives the caller that happened to trigger it; queued
	// callers depend on it.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	release := c.lockRefresh(rctx)
	defer release()

	pair, err := c.callRefresher(rctx)
	if err != nil {
		metrics.IncrementTokenRefresh("failure")
		c.logger.Warn(ctx, "Credential refresh failed; clearing session",
			"error", err, "duration_ms", time.Since(started).Milliseconds())
		resolved = true
		c.fail(ctx, err)
		return "", err
	}

	if perr := c.sessions.ReplaceCredentials(rctx, pair); perr != nil {
		c.logger.Warn(ctx, "Refreshed credentials held in memory only", "error", perr)
	}
	resolved = true
	waiters := c.finish(refreshOutcome{accessCredential: pair.AccessCredential})

	metrics.IncrementTokenRefresh("success")
	c.logger.Info(ctx, "Credential refresh succeeded",
		"replayed_waiters", waiters, "duration_ms", time.Since(started).Milliseconds())
	return pair.AccessCredential, nil
}

// lockRefresh takes the cross-process lock when one is configured. Failing
// to get it degrades to an unlocked refresh rather than a logout.
func (c *TokenRefreshCoordinator) lockRefresh(ctx context.Context) func() {
	if c.lock == nil {
		return func() {}
	}
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		c.logger.Warn(ctx, "Refreshing without cross-process lock", "error", err)
		return func() {}
	}
	return release
}

func (c *TokenRefreshCoordinator) callRefresher(ctx context.Context) (domain.CredentialPair, error) {
	refreshCredential := c.sessions.RefreshCredential()
	if refreshCredential == "" {
		return domain.CredentialPair{}, fmt.Errorf("%w: no refresh credential held", domain.ErrSessionUnrecoverable)
	}

	// Another process holding the same session may have rotated the pair
	// while we waited for the lock; our refresh credential is spent then.
	if c.lock != nil {
		if stored, err := c.sessions.Persisted(ctx); err == nil && stored.RefreshCredential != "" && stored.AccessCredential != "" && stored.RefreshCredential != refreshCredential {
			c.logger.Info(ctx, "Adopting credentials refreshed by another process")
			return stored, nil
		}
	}

	pair, err := c.refresher.RefreshCredentials(ctx, refreshCredential)
	if err == nil && (pair.AccessCredential == "" || pair.RefreshCredential == "") {
		err = fmt.Errorf("%w: refresh response lacks a full credential pair", domain.ErrMalformedEnvelope)
	}
	if err != nil {
		if errors.Is(err, domain.ErrSessionUnrecoverable) {
			return domain.CredentialPair{}, err
		}
		return domain.CredentialPair{}, fmt.Errorf("%w: %w", domain.ErrSessionUnrecoverable, err)
	}
	return pair, nil
}

func (c *TokenRefreshCoordinator) fail(ctx context.Context, cause error) {
	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Error(ctx, "Failed to clear session after refresh failure", "error", err)
	}
	failed := c.finish(refreshOutcome{err: cause})
	if failed > 0 {
		c.logger.Warn(ctx, "Failed queued requests after refresh failure", "count", failed)
	}
	if c.listener != nil {
		c.listener.OnSessionExpired(ctx, cause)
	}
}

// finish returns the coordinator to idle and resolves the queue in arrival order.
func (c *TokenRefreshCoordinator) finish(out refreshOutcome) int {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.state = refreshIdle
	c.mu.Unlock()

	for _, ch := range queue {
		ch <- out
	}
	return len(queue)
}

func (c *TokenRefreshCoordinator) replay(ctx context.Context, call *domain.Call, access string) (*http.Response, error) {
	call.Credential = access
	resp, err := call.Send(ctx, access)
	if err != nil {
		metrics.IncrementReplay("error")
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discardBody(resp)
		metrics.IncrementReplay("rejected")
		c.logger.Warn(ctx, "Replayed request still unauthorized",
			"method", call.Method, "path", call.Path)
		return nil, fmt.Errorf("%w: %s %s rejected after refresh", domain.ErrCredentialExpired, call.Method, call.Path)
	}
	metrics.IncrementReplay("ok")
	return resp, nil
}

func discardBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
