package domain

import (
	"context"
	"net/http"
)

// Call is a replayable outbound request. Send issues it again with the given
// access credential; it must be safe to call more than once.
type Call struct {
	Method string
	Path   string
	// Retried is set once the call has been replayed after a credential refresh.
	// A retried call is never queued for a second refresh.
	Retried bool
	// Credential is the access credential the most recent attempt was sent with.
	Credential string
	Send       func(ctx context.Context, accessCredential string) (*http.Response, error)
}

// ResponseInterceptor sees every response before the caller does and may
// replace it (for example by replaying the call with fresh credentials).
type ResponseInterceptor interface {
	Intercept(ctx context.Context, call *Call, resp *http.Response) (*http.Response, error)
}

// CredentialSource yields the access credential to attach to outgoing requests.
type CredentialSource interface {
	AccessCredential() string
}

// TokenRefresher exchanges a refresh credential for a new pair.
// Implementations must not route the call through a ResponseInterceptor.
type TokenRefresher interface {
	RefreshCredentials(ctx context.Context, refreshCredential string) (CredentialPair, error)
}

// AuthAPI is the /auth surface of the backend.
type AuthAPI interface {
	TokenRefresher
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	Login(ctx context.Context, in LoginInput) (AuthResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// PostAPI is the /posts surface of the backend.
type PostAPI interface {
	ListPosts(ctx context.Context, cursor, size int) (Page[Post], error)
	ListUserPosts(ctx context.Context, userID string, cursor, size int) (Page[Post], error)
	GetPost(ctx context.Context, id int64) (Post, error)
	CreatePost(ctx context.Context, in PostInput) (Post, error)
	UpdatePost(ctx context.Context, id int64, in PostInput) (Post, error)
	DeletePost(ctx context.Context, id int64) error
	TogglePostLike(ctx context.Context, id int64) (Post, error)
	PostLikes(ctx context.Context, id int64) ([]User, error)
}

// CommentAPI is the comment surface of the backend.
type CommentAPI interface {
	ListComments(ctx context.Context, postID int64) ([]Comment, error)
	CreateComment(ctx context.Context, postID int64, in CommentInput) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	UpdateComment(ctx context.Context, id int64, content string) (Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	ToggleCommentLike(ctx context.Context, id int64) (Comment, error)
	CommentLikes(ctx context.Context, id int64) ([]User, error)
}

// Notifier presents transient success/failure messages to the user.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Failure(ctx context.Context, msg string)
}
