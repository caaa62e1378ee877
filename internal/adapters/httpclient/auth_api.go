package httpclient

import (
	"context"
	"net/http"
	"net/url"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

var _ domain.AuthAPI = (*Client)(nil)

// Register creates an account and returns its first credential pair.
func (c *Client) Register(ctx context.Context, in domain.RegisterInput) (domain.AuthResult, error) {
	var out authPayload
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: in, anonymous: true}, &out); err != nil {
		return domain.AuthResult{}, err
	}
	return out.result(), nil
}

// Login exchanges email and password for a credential pair.
func (c *Client) Login(ctx context.Context, in domain.LoginInput) (domain.AuthResult, error) {
	var out authPayload
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: in, anonymous: true}, &out); err != nil {
		return domain.AuthResult{}, err
	}
	return out.result(), nil
}

// Logout tells the backend to revoke the session's refresh credential.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

// Me returns the profile behind the current access credential.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &out)
	return out, err
}

// UserByID returns any user's public profile.
func (c *Client) UserByID(ctx context.Context, id string) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/users/" + url.PathEscape(id)}, &out)
	return out, err
}

// RefreshCredentials implements domain.TokenRefresher. It bypasses the
// interceptor so a rejected refresh never queues behind itself.
func (c *Client) RefreshCredentials(ctx context.Context, refreshCredential string) (domain.CredentialPair, error) {
	var out refreshPayload
	req := request{
		method:    http.MethodPost,
		path:      "/auth/refresh",
		body:      map[string]string{"refreshToken": refreshCredential},
		raw:       true,
		anonymous: true,
	}
	if err := c.do(ctx, req, &out); err != nil {
		return domain.CredentialPair{}, err
	}
	return domain.CredentialPair{AccessCredential: out.AccessToken, RefreshCredential: out.RefreshToken}, nil
}
