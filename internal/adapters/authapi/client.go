// Package authapi is the HTTP client for the remote authentication service.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
	"github.com/target/tokenlab/internal/ports"
	"golang.org/x/net/publicsuffix"
)

const (
	registerPath = "/api/auth/register"
	loginPath    = "/api/auth/login"
	profilePath  = "/api/user/profile"
	adminPath    = "/api/admin/dashboard"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config captures the subset of auth service behaviour we need.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the auth service endpoints.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

var _ ports.AuthAPI = (*Client)(nil)

// NewClient builds an auth service client. The default HTTP client keeps cookies
// per registrable domain like a browser would.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("auth api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse auth api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("auth api base url must be http or https, got %q", base.Scheme)
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		hc = &http.Client{Timeout: timeout, Jar: jar}
	}

	return &Client{baseURL: base, client: hc}, nil
}

// Register creates an account. A non-2xx reply is returned alongside an *APIError.
func (c *Client) Register(ctx context.Context, in domainauth.Registration) (domainauth.Response, error) {
	return c.do(ctx, call{method: http.MethodPost, path: registerPath, body: in, endpoint: endpointRegister})
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, in domainauth.Credentials) (domainauth.Response, error) {
	return c.do(ctx, call{method: http.MethodPost, path: loginPath, body: in, endpoint: endpointLogin})
}

// Profile fetches the caller's profile with token as the bearer credential.
func (c *Client) Profile(ctx context.Context, token string) (domainauth.Response, error) {
	return c.do(ctx, call{method: http.MethodGet, path: profilePath, token: token, endpoint: endpointProfile})
}

// AdminDashboard fetches the admin-only dashboard with token as the bearer credential.
func (c *Client) AdminDashboard(ctx context.Context, token string) (domainauth.Response, error) {
	return c.do(ctx, call{method: http.MethodGet, path: adminPath, token: token, endpoint: endpointAdmin})
}

type call struct {
	method   string
	path     string
	body     any
	token    string
	endpoint endpoint
}

func (c *Client) do(ctx context.Context, in call) (domainauth.Response, error) {
	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return domainauth.Response{}, fmt.Errorf("encode %s request: %w", in.endpoint.name, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL.JoinPath(in.path).String(), body)
	if err != nil {
		return domainauth.Response{}, fmt.Errorf("create %s request: %w", in.endpoint.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if in.token != "" {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domainauth.Response{}, fmt.Errorf("%s request failed: %w", in.endpoint.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	parsed := parseResponse(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parsed, &APIError{Status: resp.StatusCode, Message: in.endpoint.message(parsed)}
	}
	return parsed, nil
}

// parseResponse keeps JSON object fields in Body and anything else verbatim in Raw.
// An unreadable body is reported in Raw rather than failing the call.
func parseResponse(resp *http.Response) domainauth.Response {
	out := domainauth.Response{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		out.Raw = "Failed to read body: " + err.Error()
		return out
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		out.Raw = string(data)
		return out
	}
	out.Body = fields
	return out
}
