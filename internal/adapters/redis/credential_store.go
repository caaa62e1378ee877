package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/credcodec"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/rediskeys"
)

// CredentialStoreAdapter implements domain.CredentialStore on a single Redis
// key per profile, so several client processes share one session.
type CredentialStoreAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
	key         string
	aesKeyHex   string
}

// NewCredentialStoreAdapter creates a store for profile. aesKeyHex may be empty.
func NewCredentialStoreAdapter(redisClient *redis.Client, logger domain.Logger, profile, aesKeyHex string) *CredentialStoreAdapter {
	if redisClient == nil {
		panic("redisClient cannot be nil in NewCredentialStoreAdapter")
	}
	if logger == nil {
		panic("logger cannot be nil in NewCredentialStoreAdapter")
	}
	return &CredentialStoreAdapter{
		redisClient: redisClient,
		logger:      logger,
		key:         rediskeys.CredentialKey(profile),
		aesKeyHex:   aesKeyHex,
	}
}

// Load implements domain.CredentialStore.
func (a *CredentialStoreAdapter) Load(ctx context.Context) (domain.CredentialPair, error) {
	val, err := a.redisClient.Get(ctx, a.key).Bytes()
	if errors.Is(err, redis.Nil) {
		a.logger.Debug(ctx, "No credentials stored in Redis", "key", a.key)
		return domain.CredentialPair{}, domain.ErrNoCredentials
	}
	if err != nil {
		a.logger.Error(ctx, "Failed to read credentials from Redis", "key", a.key, "error", err.Error())
		return domain.CredentialPair{}, fmt.Errorf("redis GET for credential key '%s' failed: %w", a.key, err)
	}

	pair, err := credcodec.Decode(val, a.aesKeyHex)
	if err != nil {
		a.logger.Error(ctx, "Stored credentials are unreadable", "key", a.key, "error", err.Error())
		return domain.CredentialPair{}, err
	}
	return pair, nil
}

// Save implements domain.CredentialStore. Both credentials go out in one SET.
func (a *CredentialStoreAdapter) Save(ctx context.Context, pair domain.CredentialPair) error {
	payload, err := credcodec.Encode(pair, a.aesKeyHex)
	if err != nil {
		return err
	}
	if err := a.redisClient.Set(ctx, a.key, payload, 0).Err(); err != nil {
		a.logger.Error(ctx, "Failed to store credentials in Redis", "key", a.key, "error", err.Error())
		return fmt.Errorf("redis SET for credential key '%s' failed: %w", a.key, err)
	}
	a.logger.Debug(ctx, "Stored credential pair", "key", a.key, "sealed", a.aesKeyHex != "")
	return nil
}

// Clear implements domain.CredentialStore.
func (a *CredentialStoreAdapter) Clear(ctx context.Context) error {
	if err := a.redisClient.Del(ctx, a.key).Err(); err != nil {
		a.logger.Error(ctx, "Failed to delete credentials from Redis", "key", a.key, "error", err.Error())
		return fmt.Errorf("redis DEL for credential key '%s' failed: %w", a.key, err)
	}
	return nil
}
