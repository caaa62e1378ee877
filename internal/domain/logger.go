package domain

import (
	"context"
)

// Logger defines the interface for logging within the client.
// Implementations handle structured logging (JSON with Zap).
// All logging methods accept a context.Context as the first argument
// so request-scoped values (request id, user id, operation) are attached.
// The variadic `fields` argument takes structured key-value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warn(ctx context.Context, msg string, fields ...any)
	Error(ctx context.Context, msg string, fields ...any)
	Fatal(ctx context.Context, msg string, fields ...any) // Fatal calls os.Exit(1) after logging

	// With creates a child logger with the provided structured context fields.
	With(fields ...any) Logger
}

// NopLogger discards everything. Handy for tests and for SDK users that bring no logger.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...any) {}
func (NopLogger) Info(context.Context, string, ...any)  {}
func (NopLogger) Warn(context.Context, string, ...any)  {}
func (NopLogger) Error(context.Context, string, ...any) {}
func (NopLogger) Fatal(context.Context, string, ...any) {}
func (n NopLogger) With(...any) Logger                  { return n }
