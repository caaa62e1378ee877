package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
)

const XRequestIDHeader = "X-Request-ID"

// RequestIDMiddleware injects a request ID into the context of requests
// served by the daemon's operational endpoints, reusing the caller's
// X-Request-ID when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(XRequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), contextkeys.RequestIDKey, requestID)
		w.Header().Set(XRequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLogMiddleware logs each served request at debug level.
func AccessLogMiddleware(logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug(r.Context(), "Served operational request",
				"method", r.Method, "path", r.URL.Path, "status", rec.status,
				"duration_ms", time.Since(started).Milliseconds())
		})
	}
}

// CommandContext tags ctx for one CLI operation: a fresh request id that
// every backend call of the operation carries, the operation name, and the
// signed-in user when known.
func CommandContext(ctx context.Context, operation, userID string) context.Context {
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, uuid.NewString())
	ctx = context.WithValue(ctx, contextkeys.OperationKey, operation)
	if userID != "" {
		ctx = context.WithValue(ctx, contextkeys.UserIDKey, userID)
	}
	return ctx
}
