// Package transport is the HTTP layer of the TaskFlow client. It sends
// cookie-authenticated requests and renews the access token transparently
// when the server answers 401.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	LoginPath   = "/api/v1/user/login"
	RefreshPath = "/api/v1/user/refresh"

	DefaultTimeout = 15 * time.Second

	// ReasonSessionExpired is passed to the redirect hook when a signed-in
	// session could not be renewed.
	ReasonSessionExpired = "session_expired"

	maxResponseBytes = 1 << 20 // 1MB
)

// SessionHooks lets the transport read and reset the client session without
// depending on how it is stored.
type SessionHooks interface {
	IsAuthenticated() bool
	Logout()
}

// Request is a buffered API request. The body is kept as bytes so the exact
// same request can be replayed after a token refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// NewJSONRequest encodes v as the request body. A nil v sends no body.
func NewJSONRequest(method, path string, v interface{}) (*Request, error) {
	req := &Request{Method: method, Path: path, Header: http.Header{}}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req.Body = body
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
	Code       string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not a
// *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Jar     http.CookieJar
	Hooks   SessionHooks
	// OnRedirect is called with ReasonSessionExpired when a signed-in user
	// loses their session. Optional.
	OnRedirect func(reason string)
	Log        *zap.Logger
}

// Client sends API requests.
type Client struct {
	baseURL    string
	http       *http.Client
	hooks      SessionHooks
	onRedirect func(reason string)
	log        *zap.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.Hooks == nil {
		return nil, errors.New("session hooks are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     cfg.Jar,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		hooks:      cfg.Hooks,
		onRedirect: cfg.OnRedirect,
		log:        cfg.Log,
	}, nil
}

type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Do sends req. A 401 on any endpoint other than login or refresh triggers at
// most one refresh and one replay of the original request.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}

	switch {
	case req.Path == LoginPath:
		return nil, err

	case req.Path == RefreshPath:
		c.hooks.Logout()
		return nil, err

	case StatusCode(err) == http.StatusUnauthorized && !retried(ctx):
		ctx = markRetried(ctx)

		if rerr := c.refresh(ctx); rerr != nil {
			wasAuthenticated := c.hooks.IsAuthenticated()
			c.hooks.Logout()
			if wasAuthenticated && c.onRedirect != nil {
				c.onRedirect(ReasonSessionExpired)
			}
			c.log.Info("session refresh failed", zap.String("path", req.Path), zap.Error(rerr))
			return nil, rerr
		}

		c.log.Debug("access token refreshed, replaying request", zap.String("path", req.Path))
		return c.Do(ctx, req)

	default:
		return nil, err
	}
}

// refresh bypasses Do so a failure here is handled by the caller's branch.
func (c *Client) refresh(ctx context.Context) error {
	_, err := c.send(ctx, &Request{Method: http.MethodPost, Path: RefreshPath})
	return err
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer drainAndClose(httpResp)

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newStatusError(httpResp.StatusCode, data)
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{StatusCode: status, Body: body}
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Message = payload.Message
		se.Code = payload.Code
	}
	return se
}

func drainAndClose(resp *http.Response) {
	io.CopyN(io.Discard, resp.Body, maxResponseBytes)
	_ = resp.Body.Close()
}
