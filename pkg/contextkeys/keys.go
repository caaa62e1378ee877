package contextkeys

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for the request ID sent as X-Request-ID.
	RequestIDKey contextKey = "request_id"

	// UserIDKey is the context key for the authenticated user's ID.
	UserIDKey contextKey = "user_id"

	// OperationKey is the context key naming the SDK operation in progress (e.g. "posts.create").
	OperationKey contextKey = "operation"

	// InvalidationEventIDKey is the context key for the id of the invalidation event being handled.
	InvalidationEventIDKey contextKey = "invalidation_event_id"
)

// String makes contextKey satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c contextKey) String() string {
	return string(c)
}
