package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/rediskeys"
)

const (
	defaultLockTTL  = 30 * time.Second
	lockPollInitial = 25 * time.Millisecond
	lockPollMax     = 500 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RefreshLockAdapter implements domain.RefreshLock with SET NX plus a TTL,
// so a crashed holder frees the lock on its own.
type RefreshLockAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
	key         string
	ttl         time.Duration
}

// NewRefreshLockAdapter creates the lock for profile. ttl <= 0 uses 30s.
func NewRefreshLockAdapter(redisClient *redis.Client, logger domain.Logger, profile string, ttl time.Duration) *RefreshLockAdapter {
	if redisClient == nil {
		panic("redisClient cannot be nil in NewRefreshLockAdapter")
	}
	if logger == nil {
		panic("logger cannot be nil in NewRefreshLockAdapter")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RefreshLockAdapter{
		redisClient: redisClient,
		logger:      logger,
		key:         rediskeys.RefreshLockKey(profile),
		ttl:         ttl,
	}
}

// TryAcquire makes one SET NX attempt with holder as the value.
func (a *RefreshLockAdapter) TryAcquire(ctx context.Context, holder string) (bool, error) {
	acquired, err := a.redisClient.SetNX(ctx, a.key, holder, a.ttl).Result()
	if err != nil {
		a.logger.Error(ctx, "Redis SETNX failed", "key", a.key, "error", err.Error())
		return false, fmt.Errorf("redis SETNX for key '%s' failed: %w", a.key, err)
	}
	a.logger.Debug(ctx, "Redis SETNX result", "key", a.key, "holder", holder, "ttl", a.ttl.String(), "acquired", acquired)
	return acquired, nil
}

// Release deletes the lock if holder still owns it.
func (a *RefreshLockAdapter) Release(ctx context.Context, holder string) (bool, error) {
	result, err := releaseScript.Run(ctx, a.redisClient, []string{a.key}, holder).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		a.logger.Error(ctx, "Redis EVAL (release script) failed", "key", a.key, "holder", holder, "error", err.Error())
		return false, fmt.Errorf("redis EVAL for release on key '%s' failed: %w", a.key, err)
	}
	released := result == 1
	a.logger.Debug(ctx, "Redis lock release result", "key", a.key, "holder", holder, "released", released)
	return released, nil
}

// Acquire implements domain.RefreshLock, polling with capped backoff.
func (a *RefreshLockAdapter) Acquire(ctx context.Context) (func(), error) {
	holder := uuid.NewString()
	wait := lockPollInitial
	for {
		acquired, err := a.TryAcquire(ctx, holder)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() {
				// The caller's ctx may already be done; the lock must still go.
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if _, err := a.Release(rctx, holder); err != nil {
					a.logger.Warn(rctx, "Refresh lock not released; it will expire", "key", a.key, "ttl", a.ttl.String())
				}
			}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for refresh lock: %w", ctx.Err())
		case <-timer.C:
		}
		wait *= 2
		if wait > lockPollMax {
			wait = lockPollMax
		}
	}
}
