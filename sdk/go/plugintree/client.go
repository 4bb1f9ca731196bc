// Package plugintree is a Go client for the plugind introspection API.
package plugintree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the plugind REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Plugin describes a loaded plugin.
type Plugin struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Module     string   `json:"module"`
	FullPath   []string `json:"full_path"`
	Manager    string   `json:"manager,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	SubPlugins []string `json:"sub_plugins,omitempty"`
}

// Available lists what the managers could still load.
type Available struct {
	Names     []string   `json:"names"`
	FullPaths [][]string `json:"full_paths"`
}

// LedgerEntry is one registration or removal.
type LedgerEntry struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	PluginID string    `json:"plugin_id"`
	Name     string    `json:"name"`
	Module   string    `json:"module"`
	Manager  string    `json:"manager,omitempty"`
	At       time.Time `json:"at"`
}

// LedgerQuery filters the ledger. Zero values are ignored.
type LedgerQuery struct {
	Limit    int
	PluginID string
	Action   string
}

// Health is the daemon liveness summary.
type Health struct {
	Status   string `json:"status"`
	Plugins  int    `json:"plugins"`
	Managers int    `json:"managers"`
}

// APIError represents server side validation or lookup errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("plugintree api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("plugintree api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing plugin.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// NewClient instantiates a client for the plugind API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// ListPlugins returns every loaded plugin ordered by ID.
func (c *Client) ListPlugins(ctx context.Context) ([]Plugin, error) {
	var out []Plugin
	if err := c.get(ctx, "/api/v1/plugins", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPlugin fetches a plugin by ID (full path joined with ":") or short name.
func (c *Client) GetPlugin(ctx context.Context, id string) (Plugin, error) {
	var out Plugin
	if err := c.get(ctx, "/api/v1/plugins/"+url.PathEscape(id), nil, &out); err != nil {
		return Plugin{}, err
	}
	return out, nil
}

// Owner returns the plugin that owns module or one of its parent modules.
func (c *Client) Owner(ctx context.Context, module string) (Plugin, error) {
	var out Plugin
	if err := c.get(ctx, "/api/v1/plugins/owner", url.Values{"module": {module}}, &out); err != nil {
		return Plugin{}, err
	}
	return out, nil
}

// Available returns the names and full paths the managers advertise.
func (c *Client) Available(ctx context.Context) (Available, error) {
	var out Available
	if err := c.get(ctx, "/api/v1/plugins/available", nil, &out); err != nil {
		return Available{}, err
	}
	return out, nil
}

// Ledger returns recent registrations and removals, newest first.
func (c *Client) Ledger(ctx context.Context, q LedgerQuery) ([]LedgerEntry, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.PluginID != "" {
		params.Set("plugin", q.PluginID)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	var out []LedgerEntry
	if err := c.get(ctx, "/api/v1/ledger", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health queries the daemon liveness endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.get(ctx, "/healthz", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := *c.baseURL
	u.RawPath = ""
	u.Path = path.Join(c.baseURL.Path, endpoint)
	if unescaped, err := url.PathUnescape(u.Path); err == nil {
		u.RawPath = u.Path
		u.Path = unescaped
	}
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
