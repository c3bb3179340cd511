// pkg/network/soroban/simulate.go
package soroban

import (
	"context"
	"fmt"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// transactionParams is the params object shared by envelope-taking methods.
type transactionParams struct {
	Transaction string `json:"transaction"`
}

type simulateCost struct {
	CPUInsns flexInt `json:"cpuInsns"`
	MemBytes flexInt `json:"memBytes"`
}

// simulateResponse mirrors simulateTransaction; transactionData is base64 SorobanTransactionData.
type simulateResponse struct {
	Error           string        `json:"error,omitempty"`
	MinResourceFee  flexInt       `json:"minResourceFee"`
	Cost            *simulateCost `json:"cost,omitempty"`
	TransactionData string        `json:"transactionData,omitempty"`
	LatestLedger    flexInt       `json:"latestLedger"`
}

// Simulate runs simulateTransaction for an unsigned envelope.
// A simulation that reports an error is returned as network.ErrSimulationFailed carrying the server message.
func (c *Client) Simulate(ctx context.Context, envelope string) (*network.SimulationResult, error) {
	var resp simulateResponse
	if err := c.call(ctx, "simulateTransaction", transactionParams{Transaction: envelope}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", network.ErrSimulationFailed, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", network.ErrSimulationFailed, resp.Error)
	}

	result := &network.SimulationResult{
		MinResourceFee: int64(resp.MinResourceFee),
		LatestLedger:   int64(resp.LatestLedger),
	}
	if resp.Cost != nil {
		result.Usage.CPUInstructions = int64(resp.Cost.CPUInsns)
	}
	if resp.TransactionData != "" {
		td, err := SummarizeTransactionData(resp.TransactionData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", network.ErrSimulationFailed, err)
		}
		result.TransactionData = td
		result.Usage.ReadBytes = td.ReadBytes
		result.Usage.WriteBytes = td.WriteBytes
		if result.Usage.CPUInstructions == 0 {
			result.Usage.CPUInstructions = td.Instructions
		}
	}
	return result, nil
}

type estimateResponse struct {
	ResourceFee     flexInt `json:"resourceFee"`
	CPUInstructions flexInt `json:"cpuInstructions"`
	ReadBytes       flexInt `json:"readBytes"`
	WriteBytes      flexInt `json:"writeBytes"`
}

// EstimateResourceFee calls the dedicated estimateResourceFee method.
// Servers without the method answer with network.ErrMethodNotFound.
func (c *Client) EstimateResourceFee(ctx context.Context, envelope string) (*network.CostEstimate, error) {
	var resp estimateResponse
	if err := c.call(ctx, "estimateResourceFee", transactionParams{Transaction: envelope}, &resp); err != nil {
		return nil, err
	}
	return &network.CostEstimate{
		FeeUnits:        int64(resp.ResourceFee),
		Provenance:      network.ProvenanceDedicated,
		CPUInstructions: int64(resp.CPUInstructions),
		ReadBytes:       int64(resp.ReadBytes),
		WriteBytes:      int64(resp.WriteBytes),
	}, nil
}

type prepareResponse struct {
	Transaction string `json:"transaction"`
}

// PrepareTransaction asks the server to simulate and assemble the envelope in one call.
func (c *Client) PrepareTransaction(ctx context.Context, envelope string) (string, error) {
	var resp prepareResponse
	if err := c.call(ctx, "prepareTransaction", transactionParams{Transaction: envelope}, &resp); err != nil {
		return "", err
	}
	if resp.Transaction == "" {
		return "", fmt.Errorf("prepareTransaction returned an empty envelope")
	}
	return resp.Transaction, nil
}
