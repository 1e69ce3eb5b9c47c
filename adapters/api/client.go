package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/ports"
)

// TenantHeader carries the tenant scope on tenant-scoped calls.
const TenantHeader = "X-Tenant-Id"

// Client implements ports.APIClient over HTTP. It normalizes every
// outcome into either a decoded response or a *core.APIError carrying
// the backend's message/error field (or raw body text).
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger

	mu       sync.RWMutex
	oracle   string
	tenantID string
}

// Config configures a Client. Tokens may be nil when no authenticated
// calls will be made.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *zap.Logger
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		tokens:  cfg.Tokens,
		log:     logger,
	}
}

// SetOracle selects the oracle routing segment for subsequent calls.
func (c *Client) SetOracle(oracleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oracle = oracleID
}

// Oracle returns the currently selected oracle.
func (c *Client) Oracle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.oracle
}

// SetTenant selects the tenant scope for subsequent calls.
func (c *Client) SetTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantID = tenantID
}

// Call issues a request and decodes a 2xx JSON response into out.
func (c *Client) Call(ctx context.Context, method, path string, body, out any, opts ports.CallOptions) error {
	url, err := c.buildURL(path, opts.Oracle)
	if err != nil {
		return &core.APIError{Message: err.Error()}
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &core.APIError{Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &core.APIError{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if opts.Auth {
		if err := c.authorize(ctx, req); err != nil {
			return &core.APIError{Message: err.Error()}
		}
	}
	if opts.Tenant {
		c.mu.RLock()
		tenantID := c.tenantID
		c.mu.RUnlock()
		if tenantID != "" {
			req.Header.Set(TenantHeader, tenantID)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("backend call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &core.APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.APIError{Message: err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.APIError{Message: failureMessage(raw), StatusCode: resp.StatusCode}
	}

	c.log.Debug("backend call succeeded", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &core.APIError{Message: fmt.Sprintf("failed to decode response: %v", err), StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) buildURL(path string, oracle bool) (string, error) {
	// Absolute URLs pass through untouched (accounts API and other
	// off-backend endpoints).
	if !strings.HasPrefix(path, "/") {
		return path, nil
	}

	base := c.baseURL
	if oracle {
		c.mu.RLock()
		oracleID := c.oracle
		c.mu.RUnlock()
		if oracleID == "" {
			return "", core.ErrNoOracle
		}
		base = base + "/oracle/" + oracleID
	}
	return base + path, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return core.ErrNotAuthenticated
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// failureMessage extracts the backend's human-readable reason from an
// error response: the JSON message field, then error, then raw text.
func failureMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return "HTTP error"
}
