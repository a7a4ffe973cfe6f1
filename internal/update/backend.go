package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"insdesk/internal/debug"
)

// DefaultBackendTimeout bounds a single backend version lookup.
const DefaultBackendTimeout = 3 * time.Second

const backendVersionPath = "/api/version"

var backendLog = debug.L("backend")

// BackendClient reads the version of the locally running backend service.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// BackendOption configures a BackendClient.
type BackendOption func(*BackendClient)

// WithBackendHTTPClient sets a custom HTTP client for the backend client.
// The client is used as is; the lookup timeout is applied per request.
func WithBackendHTTPClient(client *http.Client) BackendOption {
	return func(c *BackendClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBackendTimeout sets the per-request timeout.
func WithBackendTimeout(timeout time.Duration) BackendOption {
	return func(c *BackendClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewBackendClient creates a client for the backend listening at baseURL.
func NewBackendClient(baseURL string, opts ...BackendOption) *BackendClient {
	c := &BackendClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultBackendTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetBackendVersion returns the backend version, or nil when the backend
// cannot be reached or answers with anything unexpected. It never fails: the
// backend may legitimately not be running yet, and the next periodic check
// is the retry.
func (c *BackendClient) GetBackendVersion(ctx context.Context) *BackendVersionInfo {
	info, err := c.fetch(ctx)
	if err != nil {
		backendLog.Logf("version lookup failed: %v", err)
		return nil
	}
	return info
}

func (c *BackendClient) fetch(ctx context.Context) (*BackendVersionInfo, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("backend url not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+backendVersionPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var info BackendVersionInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	info.BackendVersion = strings.TrimSpace(info.BackendVersion)
	if info.BackendVersion == "" {
		return nil, fmt.Errorf("response has no backend_version")
	}
	return &info, nil
}
