package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error condition.
type ErrorCode string

const (
	ErrCodeTransport            ErrorCode = "Transport"            // network failure, no response
	ErrCodeCredentialExpired    ErrorCode = "CredentialExpired"    // HTTP 401 after the one permitted retry
	ErrCodeSessionUnrecoverable ErrorCode = "SessionUnrecoverable" // refresh impossible or rejected
	ErrCodeMalformedEnvelope    ErrorCode = "MalformedEnvelope"    // response body did not match the expected shape
	ErrCodeBadRequest           ErrorCode = "BadRequest"           // HTTP 400
	ErrCodeForbidden            ErrorCode = "Forbidden"            // HTTP 403
	ErrCodeNotFound             ErrorCode = "NotFound"             // HTTP 404
	ErrCodeConflict             ErrorCode = "Conflict"             // HTTP 409, e.g. duplicate email
	ErrCodeRateLimited          ErrorCode = "RateLimitExceeded"    // HTTP 429
	ErrCodeInternal             ErrorCode = "InternalServerError"  // HTTP 5xx
)

var (
	ErrTransport            = errors.New("transport failure")
	ErrCredentialExpired    = errors.New("access credential expired")
	ErrSessionUnrecoverable = errors.New("session is unrecoverable, login required")
	ErrMalformedEnvelope    = errors.New("malformed response envelope")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrNoCredentials        = errors.New("no stored credentials")
	ErrLikeToggleInFlight   = errors.New("a like toggle for this record is already in flight")

	ErrBadRequest  = errors.New("bad request")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")
	ErrServer      = errors.New("server error")
)

// ErrorResponse is the error body the backend sends with non-2xx statuses.
type ErrorResponse struct {
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// APIError is a validation or business failure reported by the server.
// It is surfaced as-is: no retry, cache untouched.
type APIError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details string
}

// NewAPIError builds an APIError from an HTTP status and the decoded body (which may be empty).
func NewAPIError(status int, body ErrorResponse) *APIError {
	code := body.Code
	if code == "" {
		code = CodeForStatus(status)
	}
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{
		Status:  status,
		Code:    code,
		Message: msg,
		Details: body.Details,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d %s] %s", e.Status, e.Code, e.Message)
}

// Is lets errors.Is match an APIError against the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServer:
		return e.Status >= http.StatusInternalServerError
	case ErrCredentialExpired:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// CodeForStatus maps an HTTP status to an ErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrCodeBadRequest
	case status == http.StatusUnauthorized:
		return ErrCodeCredentialExpired
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusConflict:
		return ErrCodeConflict
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	default:
		return ErrCodeInternal
	}
}

// MsgUnauthorized is shown once the session can no longer be used.
const MsgUnauthorized = "You are not authorized. Please login again."

// UserMessage returns the text a front end should show for err.
// Server-provided messages win; otherwise a generic line per error class.
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionUnrecoverable), errors.Is(err, ErrNotAuthenticated):
		// A rejected refresh wraps the server's reply; the session is gone either way.
		return MsgUnauthorized
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrLikeToggleInFlight):
		return err.Error()
	case errors.Is(err, ErrCredentialExpired):
		return MsgUnauthorized
	case errors.Is(err, ErrTransport):
		return "Network error. Please check your connection."
	default:
		return "An unexpected error occurred."
	}
}
