package mocks

import (
	"context"
	"sync/atomic"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// MockLogger implements domain.Logger for benchmarking. It only counts.
type MockLogger struct {
	DebugCount atomic.Int64
	InfoCount  atomic.Int64
	WarnCount  atomic.Int64
	ErrorCount atomic.Int64
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(context.Context, string, ...any) { m.DebugCount.Add(1) }
func (m *MockLogger) Info(context.Context, string, ...any)  { m.InfoCount.Add(1) }
func (m *MockLogger) Warn(context.Context, string, ...any)  { m.WarnCount.Add(1) }
func (m *MockLogger) Error(context.Context, string, ...any) { m.ErrorCount.Add(1) }
func (m *MockLogger) Fatal(context.Context, string, ...any) { m.ErrorCount.Add(1) }
func (m *MockLogger) With(...any) domain.Logger             { return m }
