// pkg/network/soroban/broadcast.go
package soroban

import (
	"context"
	"fmt"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// Send statuses reported by sendTransaction.
const (
	SendStatusPending       = "PENDING"
	SendStatusDuplicate     = "DUPLICATE"
	SendStatusTryAgainLater = "TRY_AGAIN_LATER"
	SendStatusError         = "ERROR"
)

// Statuses reported by getTransaction.
const (
	TxStatusSuccess  = "SUCCESS"
	TxStatusFailed   = "FAILED"
	TxStatusNotFound = "NOT_FOUND"
)

type sendResponse struct {
	Status         string  `json:"status"`
	Hash           string  `json:"hash,omitempty"`
	ErrorResultXdr string  `json:"errorResultXdr,omitempty"`
	LatestLedger   flexInt `json:"latestLedger"`
}

// SendTransaction broadcasts a signed envelope.
// The endpoint's status is returned as-is; the caller decides what it means.
func (c *Client) SendTransaction(ctx context.Context, envelope string) (*network.BroadcastResult, error) {
	if envelope == "" {
		return nil, fmt.Errorf("signed envelope is required")
	}

	var resp sendResponse
	if err := c.call(ctx, "sendTransaction", transactionParams{Transaction: envelope}, &resp); err != nil {
		return nil, err
	}

	return &network.BroadcastResult{
		Hash:              resp.Hash,
		Status:            resp.Status,
		RejectionEnvelope: resp.ErrorResultXdr,
	}, nil
}

type getTransactionParams struct {
	Hash string `json:"hash"`
}

type getTransactionResponse struct {
	Status    string  `json:"status"`
	Ledger    flexInt `json:"ledger"`
	ResultXdr string  `json:"resultXdr,omitempty"`
}

// GetTransaction resolves a transaction hash against the ledger history.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*network.LedgerTransaction, error) {
	if hash == "" {
		return nil, fmt.Errorf("transaction hash is required")
	}

	var resp getTransactionResponse
	if err := c.call(ctx, "getTransaction", getTransactionParams{Hash: hash}, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case TxStatusSuccess, TxStatusFailed:
		return &network.LedgerTransaction{
			Found:          true,
			Successful:     resp.Status == TxStatusSuccess,
			LedgerSequence: int64(resp.Ledger),
			ResultEnvelope: resp.ResultXdr,
		}, nil
	case TxStatusNotFound, "":
		return &network.LedgerTransaction{Found: false}, nil
	default:
		return nil, fmt.Errorf("unexpected getTransaction status %q", resp.Status)
	}
}
