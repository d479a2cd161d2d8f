package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ Client = (*PushClient)(nil)

// PushClient delivers payloads to a remote push endpoint over HTTP. One
// client serves one endpoint; construction is cheap to call but callers
// are expected to cache clients per endpoint.
type PushClient struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// PushOption configures a PushClient.
type PushOption func(*PushClient)

// NewPushClient creates a push client for the given endpoint. The
// endpoint is normalized to carry a scheme before first use, and the
// normalized form is the one logged and dialed.
func NewPushClient(endpoint string, opts ...PushOption) *PushClient {
	c := &PushClient{
		endpoint: NormalizeEndpoint(endpoint),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("push client created", "endpoint", c.endpoint)
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) PushOption {
	return func(c *PushClient) {
		c.httpClient.Timeout = d
	}
}

// WithAuthToken sets a bearer token sent with every request.
func WithAuthToken(token string) PushOption {
	return func(c *PushClient) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) PushOption {
	return func(c *PushClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PushOption {
	return func(c *PushClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Endpoint returns the normalized endpoint this client delivers to.
func (c *PushClient) Endpoint() string {
	return c.endpoint
}

// Send POSTs payload to the connection's delivery resource. A 410
// response maps to ErrGone through StatusError.
func (c *PushClient) Send(ctx context.Context, connectionID string, payload []byte) error {
	return c.do(ctx, http.MethodPost, connectionID, payload)
}

// Terminate DELETEs the connection's delivery resource, closing the
// remote connection.
func (c *PushClient) Terminate(ctx context.Context, connectionID string) error {
	return c.do(ctx, http.MethodDelete, connectionID, nil)
}

func (c *PushClient) do(ctx context.Context, method, connectionID string, payload []byte) error {
	fullURL := c.endpoint + "/connections/" + url.PathEscape(connectionID)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NormalizeEndpoint returns endpoint with an explicit scheme, defaulting
// to https when the configured address carries none.
func NormalizeEndpoint(endpoint string) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}
