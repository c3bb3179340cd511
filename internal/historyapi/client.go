// internal/historyapi/client.go
package historyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/altuslabsxyz/rentflow/internal/history"
)

// DefaultHTTPTimeout bounds each history API request.
const DefaultHTTPTimeout = 15 * time.Second

// APIError is a non-2xx answer from the history API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("history api: status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match history.ErrNotFound on a 404.
func (e *APIError) Is(target error) bool {
	return target == history.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the history store HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("history api url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid history api url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}, nil
}

// Create stores a new record and returns its id.
func (c *Client) Create(ctx context.Context, r *history.Record) (string, error) {
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, transactionsPath, r, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("history api returned no record id")
	}
	return resp.ID, nil
}

// Update applies a partial update to a record.
func (c *Client) Update(ctx context.Context, id string, p *history.Patch) error {
	body := struct {
		ID string `json:"id"`
		*history.Patch
	}{ID: id, Patch: p}
	return c.do(ctx, http.MethodPatch, transactionsPath, body, nil)
}

// Get fetches a record.
func (c *Client) Get(ctx context.Context, id string) (*history.Record, error) {
	var r history.Record
	if err := c.do(ctx, http.MethodGet, transactionsPath+"/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Status fetches the tracked status of a record.
func (c *Client) Status(ctx context.Context, id string) (*history.StatusReport, error) {
	var s history.StatusReport
	if err := c.do(ctx, http.MethodGet, transactionsPath+"/"+url.PathEscape(id)+"/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns records matching opts, newest first.
func (c *Client) List(ctx context.Context, opts history.ListOptions) ([]*history.Record, error) {
	q := url.Values{}
	if opts.ContractID != "" {
		q.Set("contractId", opts.ContractID)
	}
	if opts.WalletAddress != "" {
		q.Set("walletAddress", opts.WalletAddress)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := transactionsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var records []*history.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
