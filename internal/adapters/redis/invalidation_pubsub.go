package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/rediskeys"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/safego"
)

// InvalidationPubSubAdapter implements domain.InvalidationBus with Redis pub/sub.
type InvalidationPubSubAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
	channel     string

	mu  sync.Mutex
	sub *redis.PubSub
}

// NewInvalidationPubSubAdapter creates an adapter on the channel derived from base.
func NewInvalidationPubSubAdapter(redisClient *redis.Client, logger domain.Logger, base string) *InvalidationPubSubAdapter {
	return &InvalidationPubSubAdapter{
		redisClient: redisClient,
		logger:      logger,
		channel:     rediskeys.InvalidationChannel(base),
	}
}

// PublishInvalidation publishes event as JSON.
func (a *InvalidationPubSubAdapter) PublishInvalidation(ctx context.Context, event domain.InvalidationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		a.logger.Error(ctx, "Failed to marshal invalidation event", "channel", a.channel, "error", err.Error())
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}
	if err := a.redisClient.Publish(ctx, a.channel, payload).Err(); err != nil {
		a.logger.Error(ctx, "Failed to publish invalidation event", "channel", a.channel, "error", err.Error())
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", a.channel, err)
	}
	a.logger.Debug(ctx, "Published invalidation event", "channel", a.channel, "event_id", event.ID, "entries", len(event.Entries))
	return nil
}

// SubscribeInvalidations subscribes and confirms the subscription before
// returning; messages are then handled in a background goroutine.
func (a *InvalidationPubSubAdapter) SubscribeInvalidations(ctx context.Context, handler domain.InvalidationHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return fmt.Errorf("already subscribed to %s", a.channel)
	}

	sub := a.redisClient.Subscribe(ctx, a.channel)
	if _, err := sub.Receive(ctx); err != nil {
		a.logger.Error(ctx, "Failed to confirm Redis subscription", "channel", a.channel, "error", err.Error())
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to channel '%s': %w", a.channel, err)
	}
	a.sub = sub
	a.logger.Info(ctx, "Subscribed to invalidation channel", "channel", a.channel)

	ch := sub.Channel()
	safego.Execute(ctx, a.logger, "redis-invalidation-subscriber", func() {
		for msg := range ch {
			var event domain.InvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				a.logger.Error(ctx, "Dropping malformed invalidation event", "channel", msg.Channel, "error", err.Error())
				continue
			}
			hctx := context.WithValue(ctx, contextkeys.InvalidationEventIDKey, event.ID)
			if err := handler(hctx, event); err != nil {
				a.logger.Error(hctx, "Invalidation handler failed", "channel", msg.Channel, "error", err.Error())
			}
		}
		a.logger.Info(ctx, "Invalidation subscription ended", "channel", a.channel)
	})
	return nil
}

// Healthy pings Redis.
func (a *InvalidationPubSubAdapter) Healthy(ctx context.Context) error {
	return a.redisClient.Ping(ctx).Err()
}

// Close ends the subscription, if any.
func (a *InvalidationPubSubAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub == nil {
		return nil
	}
	err := a.sub.Close()
	a.sub = nil
	if err != nil {
		a.logger.Error(context.Background(), "Error closing Redis pub/sub subscription", "error", err.Error())
		return fmt.Errorf("error closing Redis pub/sub: %w", err)
	}
	return nil
}
