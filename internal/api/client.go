package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the QuantDesk REST backend. Authenticated calls carry the
// stored access token; an expired token is refreshed before the call and a
// 401 triggers one refresh and retry.
type Client struct {
	http    *resty.Client
	baseURL string
	tokens  TokenStore
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Client)

// WithHTTPClient builds the resty client on top of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = resty.NewWithClient(hc)
		}
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.tokens = store
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  NewMemoryTokenStore(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New()
	}
	c.http.SetBaseURL(c.baseURL)
	c.http.SetTimeout(timeout)
	c.http.SetHeader("Accept", "application/json")
	c.http.SetLogger(restyLogger{c.logger})
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens exposes the token store so callers can inspect login state.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.send(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.send(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, auth bool) error {
	if auth {
		c.refreshIfExpired(ctx)
	}

	resp, err := c.execute(ctx, method, path, body, auth)
	if err != nil {
		return classifyTransportError(c.baseURL, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized && auth && c.retryAfterRefresh(ctx) {
		resp, err = c.execute(ctx, method, path, body, auth)
		if err != nil {
			return classifyTransportError(c.baseURL, err)
		}
	}

	return decodeResponse(resp, out)
}

func (c *Client) execute(ctx context.Context, method, path string, body any, auth bool) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if auth {
		if tok, err := c.tokens.Load(); err == nil && tok.Access != "" {
			req.SetAuthToken(tok.Access)
		}
	}
	c.logger.Debug("api request", "method", method, "path", path)
	return req.Execute(method, path)
}

func decodeResponse(resp *resty.Response, out any) error {
	if resp.IsError() {
		return parseError(resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]} page.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return page.Results, nil
}

type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Debug("resty", "error", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Debug("resty", "warn", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug("resty", "debug", strings.TrimSpace(fmt.Sprintf(format, v...)))
}
