// internal/lifecycle/assembler.go
package lifecycle

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// Assembler turns a simulated provisional envelope into a submittable one.
type Assembler interface {
	// Name identifies the strategy in logs.
	Name() string

	// Supported reports whether the strategy can run against this server and simulation.
	Supported(caps network.Capabilities, sim *network.SimulationResult) bool

	// Assemble attaches resources and the fee, returning the encoded envelope and its final fee.
	Assemble(ctx context.Context, env *soroban.Envelope, sim *network.SimulationResult, fee Fee) (string, int64, error)
}

// Fee is the split of the total fee between inclusion and resources.
type Fee struct {
	Base     int64
	Resource int64
}

// Total returns the fee written into the envelope.
func (f Fee) Total() int64 {
	return f.Base + f.Resource
}

// localAssembler attaches the simulation's resource footprint client-side.
type localAssembler struct{}

// LocalAssembler returns the client-side assembly strategy.
func LocalAssembler() Assembler {
	return localAssembler{}
}

func (localAssembler) Name() string { return "local" }

func (localAssembler) Supported(caps network.Capabilities, sim *network.SimulationResult) bool {
	return caps.Has(network.FeatureTransactionData) &&
		sim != nil && sim.TransactionData != nil && sim.TransactionData.XDR != ""
}

func (localAssembler) Assemble(ctx context.Context, env *soroban.Envelope, sim *network.SimulationResult, fee Fee) (string, int64, error) {
	data, err := soroban.DecodeTransactionData(sim.TransactionData.XDR)
	if err != nil {
		return "", 0, err
	}
	data.ResourceFee = xdr.Int64(fee.Resource)

	assembled, err := env.Clone()
	if err != nil {
		return "", 0, err
	}
	if err := assembled.SetFee(fee.Total()); err != nil {
		return "", 0, err
	}
	assembled.SetSorobanData(data)

	encoded, err := assembled.Encode()
	if err != nil {
		return "", 0, err
	}
	return encoded, assembled.Fee(), nil
}

// remoteAssembler delegates assembly to the server's prepareTransaction.
type remoteAssembler struct {
	preparer network.Preparer
}

// RemoteAssembler returns the server-side assembly strategy.
func RemoteAssembler(preparer network.Preparer) Assembler {
	return remoteAssembler{preparer: preparer}
}

func (remoteAssembler) Name() string { return "rpc-prepare" }

func (a remoteAssembler) Supported(caps network.Capabilities, sim *network.SimulationResult) bool {
	return a.preparer != nil && caps.Has(network.FeaturePrepareTransaction)
}

func (a remoteAssembler) Assemble(ctx context.Context, env *soroban.Envelope, sim *network.SimulationResult, fee Fee) (string, int64, error) {
	provisional, err := env.Clone()
	if err != nil {
		return "", 0, err
	}
	if err := provisional.SetFee(fee.Total()); err != nil {
		return "", 0, err
	}
	encoded, err := provisional.Encode()
	if err != nil {
		return "", 0, err
	}

	prepared, err := a.preparer.PrepareTransaction(ctx, encoded)
	if err != nil {
		return "", 0, fmt.Errorf("prepareTransaction: %w", err)
	}
	decoded, err := soroban.DecodeEnvelope(prepared)
	if err != nil {
		return "", 0, fmt.Errorf("prepareTransaction returned %w", err)
	}

	total := decoded.Fee()
	if total <= 0 {
		total = fee.Total()
	}
	return prepared, total, nil
}

// DefaultAssemblers returns the strategies in priority order.
func DefaultAssemblers(preparer network.Preparer) []Assembler {
	list := []Assembler{LocalAssembler()}
	if preparer != nil {
		list = append(list, RemoteAssembler(preparer))
	}
	return list
}

// selectAssembler returns the first supported strategy.
func selectAssembler(list []Assembler, caps network.Capabilities, sim *network.SimulationResult) (Assembler, error) {
	for _, a := range list {
		if a.Supported(caps, sim) {
			return a, nil
		}
	}
	return nil, ErrNoAssembler
}
