// internal/lifecycle/builder.go
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cosmossdk.io/math"

	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// DefaultBaseFee is the per-operation inclusion fee used when none is configured.
const DefaultBaseFee int64 = 100

// BuildLedger is what the builder needs from a network client.
type BuildLedger interface {
	network.AccountReader
	network.Simulator
	network.CapabilityReader
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// BaseFee is the network inclusion fee (0 = DefaultBaseFee).
	BaseFee int64

	// FeeBuffer multiplies the estimated resource fee. Nil or zero means 1.
	FeeBuffer math.LegacyDec

	// Estimator reconciles estimation strategies. Nil estimates from simulation only.
	Estimator *Estimator

	// Assemblers are tried in order.
	Assemblers []Assembler

	// Now is the clock used for the validity window.
	Now func() time.Time
}

// Builder produces ready-to-sign envelopes.
type Builder struct {
	ledger     BuildLedger
	baseFee    int64
	feeBuffer  math.LegacyDec
	estimator  *Estimator
	assemblers []Assembler
	now        func() time.Time
	logger     *slog.Logger
}

// NewBuilder creates a builder over ledger.
func NewBuilder(ledger BuildLedger, cfg BuilderConfig) *Builder {
	b := &Builder{
		ledger:     ledger,
		baseFee:    cfg.BaseFee,
		feeBuffer:  cfg.FeeBuffer,
		estimator:  cfg.Estimator,
		assemblers: cfg.Assemblers,
		now:        cfg.Now,
		logger:     slog.Default(),
	}
	if b.baseFee <= 0 {
		b.baseFee = DefaultBaseFee
	}
	if b.feeBuffer.IsNil() || b.feeBuffer.IsZero() {
		b.feeBuffer = math.LegacyOneDec()
	}
	if b.estimator == nil {
		b.estimator = NewEstimator(nil, DefaultFeeSchedule())
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// SetLogger sets the logger.
func (b *Builder) SetLogger(logger *slog.Logger) {
	b.logger = logger
	b.estimator.SetLogger(logger)
}

// Build assembles, simulates, estimates and finalizes an envelope.
// It returns either a complete envelope or a *BuildError.
func (b *Builder) Build(ctx context.Context, req *network.InvocationRequest, preset network.Preset) (*network.BuiltEnvelope, error) {
	if err := validateRequest(req); err != nil {
		return nil, &BuildError{Stage: StageValidate, Err: err}
	}

	account, err := b.ledger.GetAccount(ctx, req.SourceAccount)
	if err != nil {
		return nil, &BuildError{Stage: StageAccount, Err: err}
	}

	args, err := soroban.ScVals(req.Args)
	if err != nil {
		return nil, &BuildError{Stage: StageValidate, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	env, err := soroban.NewInvokeEnvelope(soroban.InvokeParams{
		SourceAccount: req.SourceAccount,
		Sequence:      account.Sequence + 1,
		Fee:           b.baseFee,
		MaxTime:       b.now().Add(req.Timeout()).Unix(),
		ContractID:    req.ContractID,
		Function:      req.Method,
		Args:          args,
	})
	if err != nil {
		return nil, &BuildError{Stage: StageValidate, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}
	provisional, err := env.Encode()
	if err != nil {
		return nil, &BuildError{Stage: StageValidate, Err: err}
	}

	sim, err := b.ledger.Simulate(ctx, provisional)
	if err != nil {
		return nil, &BuildError{Stage: StageSimulate, Err: err}
	}

	estimate := b.estimator.Estimate(ctx, provisional, sim)
	fee := Fee{Base: b.baseFee}
	if estimate != nil {
		fee.Resource = b.bufferedFee(estimate.FeeUnits)
	}

	caps, err := b.ledger.Capabilities(ctx)
	if err != nil {
		return nil, &BuildError{Stage: StageCapabilities, Err: err}
	}
	assembler, err := selectAssembler(b.assemblers, caps, sim)
	if err != nil {
		return nil, &BuildError{Stage: StageAssemble, Err: err}
	}

	encoded, total, err := assembler.Assemble(ctx, env, sim, fee)
	if err != nil {
		return nil, &BuildError{Stage: StageAssemble, Err: err}
	}

	b.logger.Debug("envelope built",
		"contract", req.ContractID,
		"method", req.Method,
		"assembler", assembler.Name(),
		"fee", total,
		"estimated", estimate != nil)

	return &network.BuiltEnvelope{
		UnsignedEnvelope:  encoded,
		FeeUnits:          total,
		CostEstimate:      estimate,
		Network:           preset.Name,
		NetworkPassphrase: preset.Passphrase,
		RPCEndpoint:       preset.RPCEndpoint,
	}, nil
}

// bufferedFee applies the fee buffer, rounding up.
func (b *Builder) bufferedFee(resource int64) int64 {
	return math.LegacyNewDec(resource).Mul(b.feeBuffer).Ceil().TruncateInt64()
}

func validateRequest(req *network.InvocationRequest) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	case req.SourceAccount == "":
		return fmt.Errorf("%w: source account is required", ErrInvalidRequest)
	case !soroban.IsAccount(req.SourceAccount):
		return fmt.Errorf("%w: source account %q is not a valid account address", ErrInvalidRequest, req.SourceAccount)
	case req.ContractID == "":
		return fmt.Errorf("%w: contract id is required", ErrInvalidRequest)
	case !soroban.IsAddress(req.ContractID):
		return fmt.Errorf("%w: contract id %q is not a valid address", ErrInvalidRequest, req.ContractID)
	case req.Method == "":
		return fmt.Errorf("%w: method is required", ErrInvalidRequest)
	case !soroban.IsSymbol(req.Method):
		return fmt.Errorf("%w: method %q is not a valid symbol", ErrInvalidRequest, req.Method)
	case req.TimeoutSeconds < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidRequest)
	}
	return nil
}
