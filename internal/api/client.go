// Package api is the HTTP client for the SpendWise backend. Every request
// carries the session's bearer token and survives one access-token expiry
// by refreshing the pair and retrying once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Session is the token holder the client reads and updates.
type Session interface {
	Token() *oauth2.Token
	RefreshToken() string
	UpdateTokens(accessToken, refreshToken string)
	Logout()
}

// Client executes authenticated requests against the API.
type Client struct {
	session    Session
	httpClient *http.Client
	logger     *slog.Logger
	observer   func(online bool)
	baseURL    string
	refreshes  singleflight.Group
	coalesce   bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRefreshCoalescing makes concurrent 401s share a single refresh call.
func WithRefreshCoalescing(enabled bool) Option {
	return func(c *Client) {
		c.coalesce = enabled
	}
}

// WithConnectivityObserver reports reachability: false on transport
// failures, true whenever the server answers.
func WithConnectivityObserver(fn func(online bool)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call.
type Request struct {
	Body   any
	Query  url.Values
	Method string
	Path   string
}

// Do executes req and decodes the response into out (which may be nil).
// A 401 triggers at most one refresh and one retry. If there is no refresh
// token or the refresh fails, the session is logged out and the original
// 401 is returned.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	err := c.send(ctx, req, out)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return err
	}

	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		c.logger.Info("Request unauthorized without refresh token, logging out", "path", req.Path)
		c.session.Logout()
		return err
	}

	if refreshErr := c.refresh(ctx, refreshToken); refreshErr != nil {
		c.logger.Warn("Token refresh failed, logging out", "error", refreshErr)
		c.session.Logout()
		return err
	}

	return c.send(ctx, req, out)
}

// RefreshSession exchanges the stored refresh token for new tokens ahead of
// expiry. Unlike the refresh inside Do, a failure leaves the session alone.
func (c *Client) RefreshSession(ctx context.Context) error {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return ErrUnauthorized
	}
	return c.refresh(ctx, refreshToken)
}

func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	if !c.coalesce {
		return c.doRefresh(ctx, refreshToken)
	}
	_, err, shared := c.refreshes.Do(refreshToken, func() (any, error) {
		return nil, c.doRefresh(ctx, refreshToken)
	})
	if shared {
		c.logger.Debug("Shared in-flight token refresh")
	}
	return err
}

func (c *Client) doRefresh(ctx context.Context, refreshToken string) error {
	c.logger.Info("Access token rejected, refreshing")

	pair, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if pair.AccessToken == "" {
		return fmt.Errorf("refresh response carried no access token")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	c.session.UpdateTokens(pair.AccessToken, pair.RefreshToken)
	return nil
}

func (c *Client) send(ctx context.Context, req Request, out any) error {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok := c.session.Token(); tok != nil {
		tok.SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil {
			c.report(false)
		}
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.report(true)

	c.logger.Debug("API request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &Error{
			Method:  req.Method,
			Path:    req.Path,
			Status:  resp.StatusCode,
			Message: parseErrorMessage(respBody),
			Body:    respBody,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", req.Path, err)
	}
	return nil
}

func (c *Client) report(online bool) {
	if c.observer != nil {
		c.observer(online)
	}
}
