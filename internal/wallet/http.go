// internal/wallet/http.go
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSignTimeout bounds how long a human has to answer a bridged signing request.
const DefaultSignTimeout = 5 * time.Minute

// HTTPAgent forwards signing requests to a wallet bridge over HTTP.
// The bridge answers with any of the Response shapes.
type HTTPAgent struct {
	url    string
	client *http.Client
}

// NewHTTPAgent creates an agent for the bridge at url.
func NewHTTPAgent(url string, client *http.Client) (*HTTPAgent, error) {
	if url == "" {
		return nil, fmt.Errorf("signing bridge url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultSignTimeout}
	}
	return &HTTPAgent{url: url, client: client}, nil
}

type signRequest struct {
	Envelope string `json:"envelope"`
	SignOptions
}

// SignEnvelope posts the envelope to the bridge and parses its answer.
func (a *HTTPAgent) SignEnvelope(ctx context.Context, unsignedEnvelope string, opts SignOptions) (Response, error) {
	body, err := json.Marshal(signRequest{Envelope: unsignedEnvelope, SignOptions: opts})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("signing bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read signing bridge response: %w", err)
	}

	parsed, parseErr := ParseResponse(respBody)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && parsed.Kind == KindError {
			return parsed, nil
		}
		return Response{}, fmt.Errorf("signing bridge returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if parseErr != nil {
		return Response{}, parseErr
	}
	return parsed, nil
}
