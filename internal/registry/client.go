package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/solpm/internal/ir"
)

const (
	// DefaultBaseURL is the public program registry.
	DefaultBaseURL = "https://solpm-registry-production.up.railway.app"

	// maxResponseBytes bounds the install response (10 MiB).
	maxResponseBytes = 10 << 20
)

type (
	// Client fetches interface documents from the program registry.
	Client struct {
		httpClient  *http.Client
		baseURL     string
		userAgent   string
		projectHash string
	}

	// ClientOption configures a Client.
	ClientOption func(*Client)

	// Install is the registry's answer to an install request.
	Install struct {
		Name      string          `json:"name"`
		Version   string          `json:"version"`
		ProgramID string          `json:"program_id"`
		Interface json.RawMessage `json:"idl"`
	}

	installRequest struct {
		Network     string `json:"network"`
		ProjectHash string `json:"project_hash,omitempty"`
	}
)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the registry base URL.
func WithBaseURL(base string) ClientOption {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(base, "/")
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithProjectHash sets the project identifier sent with install requests.
func WithProjectHash(hash string) ClientOption {
	return func(cl *Client) {
		cl.projectHash = hash
	}
}

// NewClient creates a Client for DefaultBaseURL using http.DefaultClient.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		userAgent:  "solpm/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the interface document of the install response.
//
// Implements engine.Fetcher.
func (c *Client) Fetch(ctx context.Context, name, version string, network ir.Network) ([]byte, error) {
	inst, err := c.Install(ctx, name, version, network)
	if err != nil {
		return nil, err
	}
	return inst.Interface, nil
}

// Install posts an install request for name at version (or the latest
// version) on network.
func (c *Client) Install(ctx context.Context, name, version string, network ir.Network) (*Install, error) {
	if IsLatest(version) {
		version = Latest
	}
	reqURL := fmt.Sprintf("%s/programs/%s/%s/install", c.baseURL, url.PathEscape(name), url.PathEscape(version))

	body, err := json.Marshal(installRequest{Network: string(network), ProjectHash: c.projectHash})
	if err != nil {
		return nil, fmt.Errorf("encode install request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Keep the context error visible so callers can tell a timeout
		// from other failures.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &NetworkError{URL: reqURL, Err: ctxErr}
		}
		return nil, &NetworkError{URL: reqURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s@%s on %s", ErrNotFound, name, version, network)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var inst Install
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&inst); err != nil {
		return nil, &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(inst.Interface) == 0 || string(inst.Interface) == "null" {
		return nil, &NetworkError{URL: reqURL, StatusCode: resp.StatusCode, Err: errors.New("response has no interface document")}
	}
	return &inst, nil
}
