// pkg/network/soroban/client.go
package soroban

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// DefaultHTTPTimeout bounds a single RPC round-trip.
const DefaultHTTPTimeout = 30 * time.Second

// JSON-RPC error code for an unknown method.
const codeMethodNotFound = -32601

// ClientConfig configures Client creation.
type ClientConfig struct {
	// RPCEndpoint is the JSON-RPC URL.
	RPCEndpoint string

	// HorizonURL is the REST base used for account reads.
	// Empty means the RPC endpoint also serves the REST routes.
	HorizonURL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to a ledger RPC server over JSON-RPC 2.0 and to its REST companion for account reads.
// It is safe for concurrent use.
type Client struct {
	rpcEndpoint string
	horizonURL  string
	client      *http.Client
	nextID      atomic.Int64
}

// Ensure Client fully implements network.Ledger.
var _ network.Ledger = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("RPC endpoint is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	horizon := cfg.HorizonURL
	if horizon == "" {
		horizon = cfg.RPCEndpoint
	}

	return &Client{
		rpcEndpoint: cfg.RPCEndpoint,
		horizonURL:  strings.TrimRight(horizon, "/"),
		client:      httpClient,
	}, nil
}

// RPCEndpoint returns the configured RPC endpoint.
func (c *Client) RPCEndpoint() string {
	return c.rpcEndpoint
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match method-not-found responses against network.ErrMethodNotFound.
func (e *RPCError) Is(target error) bool {
	return target == network.ErrMethodNotFound && e.Code == codeMethodNotFound
}

// call performs a JSON-RPC call and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcEndpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// flexInt decodes integers that RPC servers send either as JSON numbers or as decimal strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", string(data), err)
	}
	*f = flexInt(v)
	return nil
}

// isMethodNotFound reports whether err is a JSON-RPC method-not-found error.
func isMethodNotFound(err error) bool {
	return errors.Is(err, network.ErrMethodNotFound)
}
