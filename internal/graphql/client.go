package graphql

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datacite/akita/internal/model"
	"github.com/datacite/akita/internal/util"
	"github.com/datacite/akita/internal/worker"
)

const defaultMaxRetries = 3

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 8 << 20

// retrySleepFunc is the sleep used between retries (injectable for tests)
var retrySleepFunc = time.Sleep

// Client posts GraphQL operations to a single endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
	token      string
	maxRetries int
	limiter    *worker.Limiter
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken sends the token as a bearer credential
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLimiter throttles requests through a shared limiter
func WithLimiter(l *worker.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets the number of attempts for transient failures
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a client for endpoint
func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "akita",
		maxRetries: defaultMaxRetries,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client from configuration. token may be empty.
func NewClientFromConfig(cfg *model.Config, token string, logger *zap.Logger) *Client {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
	}
	if cfg.HTTP.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed staging hosts
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return NewClient(cfg.API.Endpoint, cfg.HTTP.Timeout,
		WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout, Transport: transport}),
		WithUserAgent(cfg.HTTP.UserAgent),
		WithToken(token),
		WithMaxRetries(cfg.HTTP.MaxRetries),
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		WithLogger(logger),
	)
}

// Endpoint returns the GraphQL endpoint URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Error is one entry of a GraphQL errors array
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Errors is returned when the server reports GraphQL errors. When the
// response also carried data, that data has already been decoded.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// StatusError is returned for non-2xx HTTP responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Do executes query with variables and decodes the data object into out.
// Transient failures are retried with exponential backoff.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := encodeRequest(query, variables)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		lastErr = c.do(ctx, body, out)
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt < c.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Debug("retrying graphql request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			retrySleepFunc(backoff)
		}
	}
	return lastErr
}

// Mutate executes a mutation in a single attempt. Mutations are not
// idempotent, so transient failures are returned to the caller.
func (c *Client) Mutate(ctx context.Context, mutation string, variables map[string]any, out any) error {
	body, err := encodeRequest(mutation, variables)
	if err != nil {
		return err
	}
	return c.do(ctx, body, out)
}

func encodeRequest(query string, variables map[string]any) ([]byte, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("graphql response",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var gqlResp response
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	hasData := len(gqlResp.Data) > 0 && !bytes.Equal(gqlResp.Data, []byte("null"))
	if hasData && out != nil {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}

	if len(gqlResp.Errors) > 0 {
		return gqlResp.Errors
	}
	if !hasData {
		return errors.New("graphql: empty response")
	}
	return nil
}

// isRetryable reports whether err is a transient transport failure
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	s := strings.ToLower(err.Error())
	return strings.HasPrefix(s, "post:") && (strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "eof"))
}
