package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewViperProvider_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://feed.example/api
  timeout_seconds: 3
cache:
  comment_ttl_seconds: 120
invalidation:
  transport: redis
  channel: team
`)
	t.Setenv("FEEDCTL_AUTH_CREDENTIAL_BACKEND", "memory")
	t.Setenv("FEEDCTL_LOG_LEVEL", "debug")

	p, err := NewViperProvider(context.Background(), zap.NewNop(), Options{File: path})
	require.NoError(t, err)

	cfg := p.Get()
	assert.Equal(t, "http://feed.example/api", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.TimeoutSeconds)
	assert.Equal(t, 120, cfg.Cache.CommentTTLSeconds)
	assert.Equal(t, 60, cfg.Cache.PostTTLSeconds, "untouched keys keep defaults")
	assert.Equal(t, "memory", cfg.Auth.CredentialBackend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Invalidation.Transport)
	assert.Equal(t, "team", cfg.Invalidation.Channel)
}

func TestNewViperProvider_MissingExplicitFileUsesDefaults(t *testing.T) {
	p, err := NewViperProvider(context.Background(), zap.NewNop(), Options{File: filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", p.Get().API.BaseURL)
	assert.Equal(t, 15, p.Get().Auth.RefreshTimeoutSeconds)
}

func TestNewViperProvider_RejectsInvalidBackend(t *testing.T) {
	path := writeConfig(t, "auth:\n  credential_backend: floppy\n")
	_, err := NewViperProvider(context.Background(), zap.NewNop(), Options{File: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential_backend")
}

func TestValidate_NATSNeedsURL(t *testing.T) {
	cfg := Defaults()
	cfg.Invalidation.Transport = "nats"
	require.Error(t, cfg.Validate())

	cfg.NATS.URL = "nats://localhost:4222"
	require.NoError(t, cfg.Validate())
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Cache.PageSize)
	assert.Equal(t, "file", cfg.Auth.CredentialBackend)
	assert.Equal(t, 15*time.Second, cfg.RefreshTimeout())
}
