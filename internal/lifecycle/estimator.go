// internal/lifecycle/estimator.go
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// FeeSchedule converts a resource-usage summary into fee units when the
// simulation does not report a resource fee directly.
type FeeSchedule struct {
	// FeePer10KInstructions is charged per 10,000 CPU instructions.
	FeePer10KInstructions int64 `toml:"fee_per_10k_instructions" json:"feePer10kInstructions"`
	// FeePerReadKB is charged per KiB read from the ledger.
	FeePerReadKB int64 `toml:"fee_per_read_kb" json:"feePerReadKb"`
	// FeePerWriteKB is charged per KiB written to the ledger.
	FeePerWriteKB int64 `toml:"fee_per_write_kb" json:"feePerWriteKb"`
}

// DefaultFeeSchedule mirrors public network settings at protocol 21.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		FeePer10KInstructions: 25,
		FeePerReadKB:          1786,
		FeePerWriteKB:         11800,
	}
}

// Fee returns the fee for usage, rounding each component up.
func (s FeeSchedule) Fee(u network.ResourceUsage) int64 {
	return ceilDiv(u.CPUInstructions*s.FeePer10KInstructions, 10_000) +
		ceilDiv(u.ReadBytes*s.FeePerReadKB, 1024) +
		ceilDiv(u.WriteBytes*s.FeePerWriteKB, 1024)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Estimator reconciles the dedicated estimation call with the simulation result.
type Estimator struct {
	dedicated network.FeeEstimator
	schedule  FeeSchedule
	logger    *slog.Logger
}

// NewEstimator creates an estimator. dedicated may be nil when the client has no estimation call.
func NewEstimator(dedicated network.FeeEstimator, schedule FeeSchedule) *Estimator {
	return &Estimator{
		dedicated: dedicated,
		schedule:  schedule,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger.
func (e *Estimator) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Estimate returns the preferred positive estimate, or nil when neither strategy produced one.
// A nil estimate is not an error; the caller falls back to the baseline fee.
func (e *Estimator) Estimate(ctx context.Context, envelope string, sim *network.SimulationResult) *network.CostEstimate {
	if est := e.fromDedicated(ctx, envelope); est != nil {
		return est
	}
	return e.fromSimulation(sim)
}

func (e *Estimator) fromDedicated(ctx context.Context, envelope string) *network.CostEstimate {
	if e.dedicated == nil {
		return nil
	}
	est, err := e.dedicated.EstimateResourceFee(ctx, envelope)
	if err != nil {
		e.logger.Debug("dedicated fee estimation unavailable", "error", err)
		return nil
	}
	if est == nil || est.FeeUnits <= 0 {
		return nil
	}
	out := *est
	out.Provenance = network.ProvenanceDedicated
	return &out
}

func (e *Estimator) fromSimulation(sim *network.SimulationResult) *network.CostEstimate {
	if sim == nil {
		return nil
	}
	fee := sim.MinResourceFee
	if fee <= 0 && sim.TransactionData != nil {
		fee = sim.TransactionData.ResourceFee
	}
	if fee <= 0 {
		fee = e.schedule.Fee(sim.Usage)
	}
	if fee <= 0 {
		return nil
	}
	return &network.CostEstimate{
		FeeUnits:        fee,
		Provenance:      network.ProvenanceSimulation,
		CPUInstructions: sim.Usage.CPUInstructions,
		ReadBytes:       sim.Usage.ReadBytes,
		WriteBytes:      sim.Usage.WriteBytes,
	}
}
