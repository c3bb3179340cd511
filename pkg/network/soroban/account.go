// pkg/network/soroban/account.go
package soroban

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// accountResponse represents the REST API response for account queries.
type accountResponse struct {
	AccountID string `json:"account_id"`
	Sequence  string `json:"sequence"`
}

// GetAccount queries the current sequence number of accountID.
// A 404 answer maps to network.ErrAccountNotFound.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*network.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}

	endpoint := fmt.Sprintf("%s/accounts/%s", c.horizonURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", network.ErrAccountNotFound, accountID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var accResp accountResponse
	if err := json.Unmarshal(body, &accResp); err != nil {
		return nil, fmt.Errorf("failed to parse account response: %w", err)
	}

	sequence, err := strconv.ParseInt(accResp.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sequence: %w", err)
	}

	id := accResp.AccountID
	if id == "" {
		id = accountID
	}
	return &network.Account{AccountID: id, Sequence: sequence}, nil
}
