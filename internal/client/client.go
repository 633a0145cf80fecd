// ABOUTME: HTTP client for the travelmind-gateway chat API
// ABOUTME: Shared by the web and terminal frontends; non-2xx replies become *APIError

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds one API call. Grounded generation can be slow.
const DefaultTimeout = 120 * time.Second

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	Status  int
	Message string
	// UserTurnSaved is true when the gateway stored the user message before failing
	UserTurnSaved bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// Client talks to one gateway
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithToken sends token as a bearer token on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for the gateway at baseURL, e.g. http://localhost:8000
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the gateway address the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", body.Status)
	}
	return nil
}

// do sends one request with the extra headers hdr and decodes a JSON reply into out.
func (c *Client) do(ctx context.Context, method, path string, in any, hdr map[string]string, out any) error {
	_, err := c.doWithHeaders(ctx, method, path, in, hdr, out)
	return err
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, in any, hdr map[string]string, out any) (http.Header, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("parsing response: %w", err)
		}
	}
	return resp.Header, nil
}

// decodeAPIError reads the gateway's {"error", "user_turn_saved"} body. Bodies
// that are not JSON fall back to the status text.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error         string `json:"error"`
		UserTurnSaved bool   `json:"user_turn_saved"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.UserTurnSaved = body.UserTurnSaved
		return apiErr
	}

	apiErr.Message = http.StatusText(resp.StatusCode)
	if text := strings.TrimSpace(string(data)); text != "" {
		apiErr.Message = text
	}
	return apiErr
}

// TokenPath is where the gateway's token command saves a token:
// $XDG_CONFIG_HOME/travelmind/token or ~/.config/travelmind/token.
func TokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "travelmind", "token")
}

// LoadToken returns the bearer token from TRAVELMIND_TOKEN or the file at
// TokenPath. Empty when neither is set.
func LoadToken() string {
	if token := os.Getenv("TRAVELMIND_TOKEN"); token != "" {
		return token
	}

	data, err := os.ReadFile(TokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
