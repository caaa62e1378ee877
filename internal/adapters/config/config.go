package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "FEEDCTL"

// APIConfig holds REST backend settings.
// Note: Fields should be exported (start with uppercase) to be unmarshalled by Viper.
type APIConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"` // 0 disables client-side limiting
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
	UserAgent          string  `mapstructure:"user_agent"`
}

// AuthConfig holds session and credential persistence settings.
type AuthConfig struct {
	RefreshTimeoutSeconds int    `mapstructure:"refresh_timeout_seconds"`
	CredentialBackend     string `mapstructure:"credential_backend"` // file | redis | memory
	CredentialFile        string `mapstructure:"credential_file"`
	CredentialAESKey      string `mapstructure:"credential_aes_key"` // hex, 32 bytes; should primarily come from ENV
	Profile               string `mapstructure:"profile"`
}

// CacheConfig holds resource cache freshness settings.
type CacheConfig struct {
	PostTTLSeconds    int `mapstructure:"post_ttl_seconds"`
	CommentTTLSeconds int `mapstructure:"comment_ttl_seconds"`
	UserTTLSeconds    int `mapstructure:"user_ttl_seconds"`
	PageSize          int `mapstructure:"page_size"`
}

// RedisConfig holds Redis-related configurations.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"` // Optional
	DB       int    `mapstructure:"db"`       // Optional
}

// NATSConfig holds NATS-related configurations.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// InvalidationConfig selects the cross-process invalidation bus.
type InvalidationConfig struct {
	Transport string `mapstructure:"transport"` // none | redis | nats
	Channel   string `mapstructure:"channel"`
}

// ServerConfig holds settings of the `serve` daemon.
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName            string `mapstructure:"service_name"`
	Version                string `mapstructure:"version"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Config holds all configuration for the client.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Invalidation InvalidationConfig `mapstructure:"invalidation"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	App          AppConfig          `mapstructure:"app"`
}

// APITimeout returns the per-request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RefreshTimeout bounds both the refresh call and the wait of queued requests.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.Auth.RefreshTimeoutSeconds) * time.Second
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
}

// Options tune how the viper provider finds and watches its file.
type Options struct {
	// File is an explicit config file path; when empty VIPER_CONFIG_NAME / VIPER_CONFIG_PATH are used.
	File string
	// Watch enables SIGHUP and file-change reloads. Only long-running commands want this.
	Watch bool
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config atomic.Pointer[Config]
	logger *zap.Logger // Using zap.Logger directly for config internal logging, not domain.Logger to avoid circular deps
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout_seconds", 10)
	v.SetDefault("api.rate_limit_per_second", 0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.user_agent", "feedctl/1.0")
	v.SetDefault("auth.refresh_timeout_seconds", 15)
	v.SetDefault("auth.credential_backend", "file")
	v.SetDefault("auth.credential_file", defaultCredentialFile())
	v.SetDefault("auth.credential_aes_key", "")
	v.SetDefault("auth.profile", "default")
	v.SetDefault("cache.post_ttl_seconds", 60)
	v.SetDefault("cache.comment_ttl_seconds", 300)
	v.SetDefault("cache.user_ttl_seconds", 300)
	v.SetDefault("cache.page_size", 10)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "")
	v.SetDefault("invalidation.transport", "none")
	v.SetDefault("invalidation.channel", "feedctl")
	v.SetDefault("server.http_port", 9464)
	v.SetDefault("log.level", "warn")
	v.SetDefault("app.service_name", "daisi-feed-client")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.shutdown_timeout_seconds", 10)
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".feedctl-credentials"
	}
	return dir + string(os.PathSeparator) + "feedctl" + string(os.PathSeparator) + "credentials"
}

func newViper(opts Options) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(getEnv("VIPER_CONFIG_NAME", "feedctl"))
		v.SetConfigType("yaml")
		v.AddConfigPath(getEnv("VIPER_CONFIG_PATH", "."))
		v.AddConfigPath(".")
	}

	// Configure Viper to read from environment variables
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")) // e.g., api.base_url becomes FEEDCTL_API_BASE_URL
	return v
}

// NewViperProvider creates and initializes a new configuration provider using Viper.
// It loads configuration from file and environment variables and, with opts.Watch, sets up hot-reloading.
// appCtx is the application lifecycle context used for graceful shutdown of background tasks.
func NewViperProvider(appCtx context.Context, logger *zap.Logger, opts Options) (Provider, error) {
	v := newViper(opts)

	// Attempt to read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Debug("Config file not found; relying on defaults and environment variables", zap.Error(err))
		} else if opts.File == "" || !os.IsNotExist(err) {
			logger.Error("Failed to read config file", zap.Error(err))
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &viperProvider{logger: logger}
	p.config.Store(cfg)

	if !opts.Watch {
		p.logger.Debug("Configuration loaded", zap.String("config_file_used", v.ConfigFileUsed()))
		return p, nil
	}

	// Set up SIGHUP for hot-reloading configuration
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.String("goroutine_name", "SIGHUPConfigReloader"),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				p.logger.Info("SIGHUP received, attempting to reload configuration...", zap.String("signal", sig.String()))
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
					continue
				}
				p.reload(v, "sighup")
			case <-appCtx.Done():
				p.logger.Info("SIGHUPConfigReloader goroutine shutting down due to context cancellation.")
				return
			}
		}
	}()

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in OnConfigChange callback",
					zap.String("event_name", e.Name),
					zap.String("event_op", e.Op.String()),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
		p.reload(v, "file_change")
	})

	p.logger.Info("Configuration loaded successfully", zap.String("config_file_used", v.ConfigFileUsed()))
	return p, nil
}

func (p *viperProvider) reload(v *viper.Viper, trigger string) {
	newCfg := &Config{}
	if err := v.Unmarshal(newCfg); err != nil {
		p.logger.Error("Failed to unmarshal reloaded config", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if err := newCfg.Validate(); err != nil {
		p.logger.Error("Reloaded config is invalid; keeping previous", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	p.config.Store(newCfg)
	p.logger.Info("Configuration reloaded successfully", zap.String("trigger", trigger))
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config.Load()
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is empty")
	}
	switch c.Auth.CredentialBackend {
	case "file", "redis", "memory":
	default:
		problems = append(problems, fmt.Sprintf("auth.credential_backend %q is not one of file, redis, memory", c.Auth.CredentialBackend))
	}
	switch c.Invalidation.Transport {
	case "none", "redis", "nats":
	default:
		problems = append(problems, fmt.Sprintf("invalidation.transport %q is not one of none, redis, nats", c.Invalidation.Transport))
	}
	if c.Invalidation.Transport == "nats" && c.NATS.URL == "" {
		problems = append(problems, "nats.url is required when invalidation.transport is nats")
	}
	if c.Auth.RefreshTimeoutSeconds <= 0 {
		problems = append(problems, "auth.refresh_timeout_seconds must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// staticProvider serves a fixed Config; used by tests and by SDK users that build Config in code.
type staticProvider struct {
	config *Config
}

// NewStaticProvider wraps cfg in a Provider.
func NewStaticProvider(cfg *Config) Provider {
	return &staticProvider{config: cfg}
}

func (p *staticProvider) Get() *Config {
	return p.config
}

// Defaults returns a Config populated with the built-in defaults only.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg) // defaults always decode
	return cfg
}

// Helper function to get env vars with a fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
