package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/filestore"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/httpclient"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/logger"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/memory"
	appnats "gitlab.com/timkado/api/daisi-feed-client/internal/adapters/nats"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/notify"
	appredis "gitlab.com/timkado/api/daisi-feed-client/internal/adapters/redis"
	"gitlab.com/timkado/api/daisi-feed-client/internal/application"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// Settings are the per-invocation inputs of the injector.
type Settings struct {
	// ConfigFile overrides the VIPER_CONFIG_NAME / VIPER_CONFIG_PATH lookup.
	ConfigFile string
	// Daemon is set by `serve`: config hot reload and stdout/stderr log split.
	Daemon bool
	// Out and Err receive notifications; they default to os.Stdout / os.Stderr.
	Out io.Writer
	Err io.Writer
	// Quiet suppresses success notifications.
	Quiet bool
}

// InitialZapLoggerProvider provides a basic *zap.Logger instance, primarily for config initialization.
// It returns the logger, a cleanup function (for syncing), and an error if creation fails.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger, err = zap.NewDevelopment()
		if err != nil {
			logger = zap.NewExample()
			fmt.Fprintf(os.Stderr, "Failed to create initial zap logger (production and development failed, falling back to example): %v\n", err)
		}
	}

	cleanup := func() {
		// stderr sync fails with EINVAL on some terminals; nothing is lost.
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// App holds the wired client. Commands reach the services through its
// accessors; `serve` calls Run.
type App struct {
	configProvider config.Provider
	logger         domain.Logger
	sessions       *application.SessionStore
	auth           *application.AuthService
	feed           *application.FeedService
	likes          *application.LikeController
	coordinator    *application.TokenRefreshCoordinator
	notifier       *notify.TerminalNotifier
	bus            domain.InvalidationBus // nil when invalidation.transport is none
	redisClient    *redis.Client          // nil when nothing is configured to use Redis
	httpServeMux   *http.ServeMux
	httpServer     *http.Server
}

// NewApp is the constructor for App, also for Wire.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	sessions *application.SessionStore,
	auth *application.AuthService,
	feed *application.FeedService,
	likes *application.LikeController,
	coordinator *application.TokenRefreshCoordinator,
	notifier *notify.TerminalNotifier,
	bus domain.InvalidationBus,
	redisClient *redis.Client,
	mux *http.ServeMux,
	server *http.Server,
) (*App, func(), error) {
	app := &App{
		configProvider: cfgProvider,
		logger:         appLogger,
		sessions:       sessions,
		auth:           auth,
		feed:           feed,
		likes:          likes,
		coordinator:    coordinator,
		notifier:       notifier,
		bus:            bus,
		redisClient:    redisClient,
		httpServeMux:   mux,
		httpServer:     server,
	}
	cleanup := func() {
		app.logger.Debug(context.Background(), "Running app cleanup...", "cached_entries", app.feed.Cache().Len())
	}
	return app, cleanup, nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.configProvider.Get() }

// Logger returns the application logger.
func (a *App) Logger() domain.Logger { return a.logger }

// Sessions returns the session store.
func (a *App) Sessions() *application.SessionStore { return a.sessions }

// Auth returns the auth service.
func (a *App) Auth() *application.AuthService { return a.auth }

// Feed returns the post and comment service.
func (a *App) Feed() *application.FeedService { return a.feed }

// Likes returns the optimistic like controller.
func (a *App) Likes() *application.LikeController { return a.likes }

// Notifier returns the terminal notifier.
func (a *App) Notifier() *notify.TerminalNotifier { return a.notifier }

// ConfigProvider provides the application configuration.
// appCtx bounds the SIGHUP and file watchers started in daemon mode.
func ConfigProvider(appCtx context.Context, logger *zap.Logger, settings Settings) (config.Provider, error) {
	return config.NewViperProvider(appCtx, logger, config.Options{
		File:  settings.ConfigFile,
		Watch: settings.Daemon,
	})
}

// LoggerProvider provides the application logger and a cleanup that flushes it.
func LoggerProvider(cfgProvider config.Provider, settings Settings) (domain.Logger, func(), error) {
	appCfg := cfgProvider.Get()
	outputs := logger.CLIOutputs()
	if settings.Daemon {
		outputs = logger.DaemonOutputs()
	}
	appLogger, err := logger.NewZapAdapter(cfgProvider, appCfg.App.ServiceName, outputs)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if s, ok := appLogger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}
	return appLogger, cleanup, nil
}

// NotifierProvider provides the terminal notifier.
func NotifierProvider(settings Settings, appLogger domain.Logger) *notify.TerminalNotifier {
	out, errOut := settings.Out, settings.Err
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return notify.NewTerminalNotifier(out, errOut, settings.Quiet, appLogger)
}

// HTTPServeMuxProvider provides the main HTTP multiplexer.
func HTTPServeMuxProvider() *http.ServeMux {
	return http.NewServeMux()
}

// HTTPGracefulServerProvider provides a new HTTP server configured for graceful shutdown.
func HTTPGracefulServerProvider(cfgProvider config.Provider, mux *http.ServeMux) *http.Server {
	appCfg := cfgProvider.Get()
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", appCfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Auth.CredentialBackend == "redis" || cfg.Invalidation.Transport == "redis"
}

// RedisClientProvider provides a Redis client and a cleanup function.
// The client is nil when neither the credential store nor the invalidation
// bus is configured to use Redis.
func RedisClientProvider(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*redis.Client, func(), error) {
	appCfg := cfgProvider.Get()
	if !usesRedis(appCfg) {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     appCfg.Redis.Address,
		Password: appCfg.Redis.Password,
		DB:       appCfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		appLogger.Error(ctx, "Failed to connect to Redis", "error", err.Error(), "address", appCfg.Redis.Address)
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", appCfg.Redis.Address, err)
	}
	cleanup := func() {
		client.Close()
		appLogger.Debug(context.Background(), "Redis connection closed")
	}
	appLogger.Debug(ctx, "Successfully connected to Redis", "address", appCfg.Redis.Address)
	return client, cleanup, nil
}

// CredentialStoreProvider selects the credential store named by auth.credential_backend.
func CredentialStoreProvider(cfgProvider config.Provider, appLogger domain.Logger, redisClient *redis.Client) (domain.CredentialStore, error) {
	auth := cfgProvider.Get().Auth
	switch auth.CredentialBackend {
	case "memory":
		return memory.NewCredentialStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis credential backend selected but no Redis client is available")
		}
		return appredis.NewCredentialStoreAdapter(redisClient, appLogger, auth.Profile, auth.CredentialAESKey), nil
	default:
		store, err := filestore.NewCredentialStore(auth.CredentialFile, auth.CredentialAESKey, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential file: %w", err)
		}
		return store, nil
	}
}

// ResourceCacheProvider provides the cache with the configured freshness windows.
// The current user has no window; it leaves the cache on logout.
func ResourceCacheProvider(cfgProvider config.Provider, appLogger domain.Logger) *application.ResourceCache {
	c := cfgProvider.Get().Cache
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	postTTL, commentTTL, userTTL := seconds(c.PostTTLSeconds), seconds(c.CommentTTLSeconds), seconds(c.UserTTLSeconds)
	return application.NewResourceCache(appLogger, application.CacheTTLs{
		domain.ResourcePost:         postTTL,
		domain.ResourcePostFeed:     postTTL,
		domain.ResourceUserPosts:    postTTL,
		domain.ResourcePostLikes:    postTTL,
		domain.ResourceCommentCount: postTTL,
		domain.ResourceComments:     commentTTL,
		domain.ResourceComment:      commentTTL,
		domain.ResourceCommentLikes: commentTTL,
		domain.ResourceUser:         userTTL,
	})
}

// RefreshLockProvider provides the cross-process refresh lock. Only the
// Redis credential store is shared between processes, so other backends get nil.
func RefreshLockProvider(cfgProvider config.Provider, appLogger domain.Logger, redisClient *redis.Client) domain.RefreshLock {
	appCfg := cfgProvider.Get()
	if appCfg.Auth.CredentialBackend != "redis" || redisClient == nil {
		return nil
	}
	// Outlive the whole refresh so a slow backend cannot let a second holder in.
	return appredis.NewRefreshLockAdapter(redisClient, appLogger, appCfg.Auth.Profile, 2*appCfg.RefreshTimeout())
}

// TokenRefreshCoordinatorProvider builds the coordinator and installs it as
// the HTTP client's response interceptor.
func TokenRefreshCoordinatorProvider(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	sessions *application.SessionStore,
	client *httpclient.Client,
	auth *application.AuthService,
	lock domain.RefreshLock,
) *application.TokenRefreshCoordinator {
	coordinator := application.NewTokenRefreshCoordinator(appLogger, sessions, client, auth, cfgProvider.Get().RefreshTimeout())
	if lock != nil {
		coordinator.UseRefreshLock(lock)
	}
	client.SetInterceptor(coordinator)
	return coordinator
}

// InvalidationBusProvider connects the cross-process invalidation bus named
// by invalidation.transport. It returns a nil bus for "none".
func InvalidationBusProvider(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger, redisClient *redis.Client) (domain.InvalidationBus, func(), error) {
	appCfg := cfgProvider.Get()
	switch appCfg.Invalidation.Transport {
	case "nats":
		bus, cleanup, err := appnats.NewInvalidationBusAdapter(ctx, cfgProvider, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return bus, cleanup, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis invalidation transport selected but no Redis client is available")
		}
		bus := appredis.NewInvalidationPubSubAdapter(redisClient, appLogger, appCfg.Invalidation.Channel)
		cleanup := func() {
			if err := bus.Close(); err != nil {
				appLogger.Warn(context.Background(), "Failed to close invalidation subscription", "error", err.Error())
			}
		}
		return bus, cleanup, nil
	default:
		return nil, func() {}, nil
	}
}

// FeedServiceProvider provides the FeedService. The origin tags this
// process's invalidation events so it can skip its own echoes.
func FeedServiceProvider(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	client *httpclient.Client,
	sessions *application.SessionStore,
	cache *application.ResourceCache,
	bus domain.InvalidationBus,
	notifier domain.Notifier,
) *application.FeedService {
	appCfg := cfgProvider.Get()
	deps := application.FeedServiceDeps{
		Logger:   appLogger,
		Posts:    client,
		Comments: client,
		Sessions: sessions,
		Cache:    cache,
		Notifier: notifier,
		Origin:   fmt.Sprintf("%s-%s", appCfg.App.ServiceName, uuid.NewString()),
		PageSize: appCfg.Cache.PageSize,
	}
	if bus != nil {
		deps.Publisher = bus
	}
	return application.NewFeedService(deps)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,
	NotifierProvider,
	wire.Bind(new(domain.Notifier), new(*notify.TerminalNotifier)),
	HTTPServeMuxProvider,
	HTTPGracefulServerProvider,

	// Infrastructure Adapters
	RedisClientProvider,
	CredentialStoreProvider,
	InvalidationBusProvider,
	httpclient.NewClient,
	wire.Bind(new(domain.AuthAPI), new(*httpclient.Client)),
	wire.Bind(new(domain.CredentialSource), new(*application.SessionStore)),

	// Application Services
	application.NewSessionStore,
	ResourceCacheProvider,
	application.NewAuthService,
	RefreshLockProvider,
	TokenRefreshCoordinatorProvider,
	FeedServiceProvider,
	application.NewLikeController,
	NewApp,
)
