package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/rediskeys"
)

// InvalidationBusAdapter implements domain.InvalidationBus on core NATS.
// Invalidations are only useful while fresh, so there is no JetStream
// persistence: a process that was offline simply starts with a cold cache.
type InvalidationBusAdapter struct {
	nc      *nats.Conn
	logger  domain.Logger
	subject string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewInvalidationBusAdapter connects to the configured NATS server.
func NewInvalidationBusAdapter(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*InvalidationBusAdapter, func(), error) {
	cfg := cfgProvider.Get()
	url := cfg.NATS.URL
	if url == "" {
		return nil, nil, fmt.Errorf("nats.url is required for the nats invalidation transport")
	}

	appLogger.Info(ctx, "Attempting to connect to NATS server", "url", url)
	nc, err := nats.Connect(url,
		nats.Name(fmt.Sprintf("%s-invalidations", cfg.App.ServiceName)),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			subject := ""
			if s != nil {
				subject = s.Subject
			}
			appLogger.Error(ctx, "NATS error", "subscription", subject, "error", err.Error())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS connection closed")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			appLogger.Warn(ctx, "NATS disconnected", "error", err)
		}),
	)
	if err != nil {
		appLogger.Error(ctx, "Failed to connect to NATS", "url", url, "error", err.Error())
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	appLogger.Info(ctx, "Successfully connected to NATS server", "url", nc.ConnectedUrl())

	adapter := newInvalidationBus(nc, appLogger, cfg.Invalidation.Channel)
	cleanup := func() {
		appLogger.Info(context.Background(), "Closing NATS connection...")
		adapter.drain()
	}
	return adapter, cleanup, nil
}

func newInvalidationBus(nc *nats.Conn, logger domain.Logger, base string) *InvalidationBusAdapter {
	return &InvalidationBusAdapter{
		nc:      nc,
		logger:  logger,
		subject: rediskeys.InvalidationSubject(base),
	}
}

// PublishInvalidation publishes event as JSON and flushes, so the event has
// left the process when this returns.
func (a *InvalidationBusAdapter) PublishInvalidation(ctx context.Context, event domain.InvalidationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}
	if err := a.nc.Publish(a.subject, payload); err != nil {
		a.logger.Error(ctx, "Failed to publish invalidation event", "subject", a.subject, "error", err.Error())
		return fmt.Errorf("failed to publish to NATS subject %s: %w", a.subject, err)
	}
	if err := a.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS publish: %w", err)
	}
	a.logger.Debug(ctx, "Published invalidation event", "subject", a.subject, "event_id", event.ID)
	return nil
}

// SubscribeInvalidations subscribes to the invalidation subject.
func (a *InvalidationBusAdapter) SubscribeInvalidations(ctx context.Context, handler domain.InvalidationHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return fmt.Errorf("already subscribed to %s", a.subject)
	}
	sub, err := a.nc.Subscribe(a.subject, a.messageHandler(ctx, handler))
	if err != nil {
		a.logger.Error(ctx, "Failed to subscribe to NATS subject", "subject", a.subject, "error", err.Error())
		return fmt.Errorf("failed to subscribe to NATS subject %s: %w", a.subject, err)
	}
	a.sub = sub
	a.logger.Info(ctx, "Subscribed to invalidation subject", "subject", a.subject)
	return nil
}

func (a *InvalidationBusAdapter) messageHandler(ctx context.Context, handler domain.InvalidationHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event domain.InvalidationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			a.logger.Error(ctx, "Dropping malformed invalidation event", "subject", msg.Subject, "error", err.Error())
			return
		}
		hctx := context.WithValue(ctx, contextkeys.InvalidationEventIDKey, event.ID)
		if err := handler(hctx, event); err != nil {
			a.logger.Error(hctx, "Invalidation handler failed", "subject", msg.Subject, "error", err.Error())
		}
	}
}

// Healthy reports whether the connection is up.
func (a *InvalidationBusAdapter) Healthy(context.Context) error {
	if a.nc == nil || !a.nc.IsConnected() {
		return errors.New("nats connection is not established")
	}
	return nil
}

// Close unsubscribes; the connection stays open until cleanup.
func (a *InvalidationBusAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub == nil {
		return nil
	}
	err := a.sub.Unsubscribe()
	a.sub = nil
	return err
}

func (a *InvalidationBusAdapter) drain() {
	if a.nc == nil || a.nc.IsClosed() {
		return
	}
	if err := a.nc.Drain(); err != nil {
		a.logger.Error(context.Background(), "Error draining NATS connection", "error", err.Error())
	}
}
