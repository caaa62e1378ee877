package mocks

import (
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/config"
)

// MockConfigProvider implements config.Provider for benchmarking
type MockConfigProvider struct {
	config *config.Config
}

// NewMockConfigProvider creates a mock config provider with benchmark settings
func NewMockConfigProvider() *MockConfigProvider {
	cfg := config.Defaults()
	cfg.API.BaseURL = "http://mock-backend:8080/api"
	cfg.API.RateLimitPerSecond = 0
	cfg.Auth.CredentialBackend = "memory"
	cfg.Auth.RefreshTimeoutSeconds = 5
	cfg.Cache.PageSize = 20
	cfg.Log.Level = "error" // Minimize I/O overhead during benchmarks
	cfg.App.ServiceName = "daisi-feed-client-benchmark"
	cfg.App.Version = "test"
	return &MockConfigProvider{config: cfg}
}

// Get implements config.Provider
func (m *MockConfigProvider) Get() *config.Config {
	return m.config
}

// UpdateConfig allows updating config during tests
func (m *MockConfigProvider) UpdateConfig(cfg *config.Config) {
	m.config = cfg
}
