// Package httpclient talks to the feed REST backend. Every request carries
// the current bearer credential and every response passes through the
// registered interceptor before it is decoded.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/config"
	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
)

const maxErrorBody = 64 << 10

// Client is the single HTTP client of the process.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	credentials domain.CredentialSource
	interceptor atomic.Pointer[interceptorBox]
	limiter     *rate.Limiter
	userAgent   string
	logger      domain.Logger
}

type interceptorBox struct {
	domain.ResponseInterceptor
}

// NewClient builds a client from the api.* config section.
func NewClient(cfgProvider config.Provider, logger domain.Logger, credentials domain.CredentialSource) (*Client, error) {
	cfg := cfgProvider.Get()
	base, err := url.Parse(strings.TrimRight(cfg.API.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api.base_url %q: %v", cfg.API.BaseURL, err)
	}

	var limiter *rate.Limiter
	if cfg.API.RateLimitPerSecond > 0 {
		burst := cfg.API.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimitPerSecond), burst)
	}

	return &Client{
		baseURL:     base,
		httpClient:  &http.Client{Timeout: cfg.APITimeout()},
		credentials: credentials,
		limiter:     limiter,
		userAgent:   cfg.API.UserAgent,
		logger:      logger,
	}, nil
}

// SetInterceptor installs the response interceptor. The refresh coordinator
// depends on this client, so it is attached after construction.
func (c *Client) SetInterceptor(i domain.ResponseInterceptor) {
	if i == nil {
		c.interceptor.Store(nil)
		return
	}
	c.interceptor.Store(&interceptorBox{i})
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// raw requests skip the interceptor; the refresh call is one.
	raw bool
	// anonymous requests carry no bearer credential.
	anonymous bool
}

// do sends req and decodes a 2xx body into out (nil to ignore it).
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", req.method, req.path, err)
		}
	}

	target := c.resolve(req.path, req.query)
	call := &domain.Call{
		Method: req.method,
		Path:   req.path,
		Send: func(ctx context.Context, access string) (*http.Response, error) {
			return c.send(ctx, req.method, target, payload, access)
		},
	}

	access := ""
	if !req.anonymous && c.credentials != nil {
		access = c.credentials.AccessCredential()
	}
	call.Credential = access

	resp, err := call.Send(ctx, access)
	if err != nil {
		return err
	}
	if box := c.interceptor.Load(); box != nil && !req.raw && !req.anonymous {
		if resp, err = box.Intercept(ctx, call, resp); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, access string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrTransport, err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, target, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}
	requestID, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(started)
	if err != nil {
		metrics.ObserveHTTPRequest(method, 0, elapsed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn(ctx, "Backend request failed", "method", method, "url", target, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrTransport, method, target, err)
	}
	metrics.ObserveHTTPRequest(method, resp.StatusCode, elapsed)
	c.logger.Debug(ctx, "Backend request completed",
		"method", method, "url", target, "status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(), "request_id", requestID)
	return resp, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apiErrorFrom(resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response body: %w", domain.ErrTransport, err)
	}
	return decodeEnvelope(body, out)
}

func apiErrorFrom(status int, body []byte) *domain.APIError {
	var parsed domain.ErrorResponse
	if err := decodeEnvelope(body, &parsed); err != nil {
		parsed = domain.ErrorResponse{}
	}
	if parsed.Message == "" {
		var loose struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &loose) == nil {
			parsed.Message = loose.Message
			if parsed.Message == "" {
				parsed.Message = loose.Error
			}
		}
	}
	return domain.NewAPIError(status, parsed)
}
