// Package rest is the JSON-over-HTTP client for the content server's public API.
//
// A Client is built once per workflow from an explicit Config. TLS trust
// policy is part of that Config and applies only to the Client's own
// transport; nothing in this package mutates process-wide state.
//
// Every call is a single request by default. Calls marked Idempotent are
// retried with exponential backoff when, and only when, they fail with
// types.ErrTransport and Config.Retries is positive.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/types"
)

const (
	// DefaultAPIPath is the public API root on the content server.
	DefaultAPIPath = "/Panopto/PublicAPI/4.6"
	// DefaultAuthCookie is the cookie that carries the session credential.
	DefaultAuthCookie = ".ASPXAUTH"
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRetryInterval is the first backoff interval for retried calls.
	DefaultRetryInterval = 500 * time.Millisecond

	maxResponseBody = 4 << 20
	maxErrorBody    = 512
)

// Config configures a Client.
type Config struct {
	// Server is the content server host, with or without scheme (required).
	// A bare host is reached over https.
	Server string
	// APIPath is the API root appended to Server (default DefaultAPIPath).
	APIPath string
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool
	// Retries is the number of retries for idempotent calls (default 0).
	Retries int
	// RetryInterval is the initial backoff interval (default 500ms).
	RetryInterval time.Duration
	// AuthCookie names the credential cookie (default ".ASPXAUTH").
	AuthCookie string
	// UserAgent is sent with every request (default "ferry/<version>").
	UserAgent string

	// Logger receives retry diagnostics. Nil discards them.
	Logger *log.Logger
	// Collector counts retries. Nil is allowed.
	Collector *metrics.Collector
}

// Request describes one API call.
type Request struct {
	// Method is the HTTP method.
	Method string
	// Resource is the path below the API root, e.g. "session".
	Resource string
	// Token authorizes the call. The zero token sends no credential.
	Token types.AuthToken
	// Body is JSON-encoded as the request payload when non-nil.
	Body any
	// Expect is the only status treated as success.
	Expect int
	// Idempotent marks the call safe to repeat.
	Idempotent bool
}

// Client performs API calls against one content server.
type Client struct {
	config Config
	base   string
	client *http.Client
	logger *log.Logger
}

// New creates a Client from cfg.
// Returns an error if the server is empty or retries is negative.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, errors.New("rest client requires a server")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.APIPath == "" {
		cfg.APIPath = DefaultAPIPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.AuthCookie == "" {
		cfg.AuthCookie = DefaultAuthCookie
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ferry/" + types.Version
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Client{
		config: cfg,
		base:   BaseURL(cfg.Server, cfg.APIPath),
		client: NewHTTPClient(cfg.Timeout, cfg.InsecureSkipVerify),
		logger: logger,
	}, nil
}

// NewHTTPClient returns an http.Client whose transport carries its own TLS
// configuration. The object store client shares this constructor so both
// legs of a run apply the same trust policy.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // operator opt-in for self-signed servers
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// BaseURL joins server and apiPath into the API root URL.
// A server without a scheme is reached over https.
func BaseURL(server, apiPath string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	apiPath = strings.Trim(apiPath, "/")
	if apiPath == "" {
		return server
	}
	return server + "/" + apiPath
}

// BaseURL returns the API root this client calls.
func (c *Client) BaseURL() string {
	return c.base
}

// Authenticate exchanges credentials for an auth token.
//
// Success requires a 200 response carrying the auth cookie. A 401/403
// response, or a 200 without the cookie, fails with types.ErrAuthentication.
// Authentication is idempotent and honours Config.Retries.
func (c *Client) Authenticate(ctx context.Context, username, password string) (types.AuthToken, error) {
	payload, err := json.Marshal(logOnInfo{Username: username, Password: password})
	if err != nil {
		return types.AuthToken{}, fmt.Errorf("marshal credentials: %w", err)
	}

	var token types.AuthToken
	err = c.retry(ctx, true, "Auth/LogOn", func() error {
		resp, _, err := c.roundTrip(ctx, http.MethodPost, "Auth/LogOn", types.AuthToken{}, payload, http.StatusOK)
		if err != nil {
			return err
		}
		for _, ck := range resp.Cookies() {
			if ck.Name == c.config.AuthCookie && ck.Value != "" {
				token = types.NewAuthToken(ck.Value)
				return nil
			}
		}
		return fmt.Errorf("%w: response carried no %s cookie", types.ErrAuthentication, c.config.AuthCookie)
	})
	if err != nil {
		return types.AuthToken{}, err
	}
	return token, nil
}

type logOnInfo struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// Call performs req and decodes the JSON response into out when the status
// equals req.Expect. out may be nil to discard the response body.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", req.Method, req.Resource, err)
		}
	}

	return c.retry(ctx, req.Idempotent, req.Resource, func() error {
		_, body, err := c.roundTrip(ctx, req.Method, req.Resource, req.Token, payload, req.Expect)
		if err != nil {
			return err
		}
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode %s %s response: %w", types.ErrUnexpectedStatus, req.Method, req.Resource, err)
		}
		return nil
	})
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// roundTrip performs a single request. The returned response body is
// already consumed and closed; its bytes are returned separately.
func (c *Client) roundTrip(ctx context.Context, method, resource string, token types.AuthToken, payload []byte, expect int) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	url := c.base + "/" + strings.TrimLeft(resource, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if !token.IsZero() {
		req.AddCookie(&http.Cookie{Name: c.config.AuthCookie, Value: token.Value()})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %w", types.ErrTransport, method, resource, err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	// Drain the remainder to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s %s response: %w", types.ErrTransport, method, resource, err)
	}

	if resp.StatusCode != expect {
		return nil, nil, newStatusError(method, resource, resp.StatusCode, body)
	}
	return resp, body, nil
}

// retry runs op once, or under bounded exponential backoff when the call is
// idempotent and retries are configured. Only types.ErrTransport is retried.
func (c *Client) retry(ctx context.Context, idempotent bool, resource string, op func() error) error {
	if !idempotent || c.config.Retries == 0 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.Retries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !errors.Is(err, types.ErrTransport) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.config.Collector.IncRetry()
		c.logger.Warn("retrying request", map[string]any{
			"resource": resource,
			"attempt":  attempt,
			"wait":     wait.String(),
			"error":    err.Error(),
		})
	})
	if err != nil && !errors.Is(err, types.ErrTransport) && ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrTransport, resource, err)
	}
	return err
}
