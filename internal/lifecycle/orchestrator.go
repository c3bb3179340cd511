// internal/lifecycle/orchestrator.go
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"cosmossdk.io/math"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
	"github.com/altuslabsxyz/rentflow/internal/wallet"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// Execution outcomes reported to metrics.
const (
	OutcomeSubmitted  = "submitted"
	OutcomeCancelled  = "cancelled"
	OutcomeFailed     = "failed"
	OutcomeBuildError = "build_error"
)

// LedgerClient is a network client able to serve a whole execution.
type LedgerClient interface {
	network.Ledger
	network.Preparer
}

// Dialer opens a ledger client for a resolved network.
type Dialer func(preset network.Preset) (LedgerClient, error)

// SorobanDialer returns a Dialer producing JSON-RPC clients sharing httpClient.
func SorobanDialer(httpClient *http.Client) Dialer {
	return func(preset network.Preset) (LedgerClient, error) {
		return soroban.NewClient(&soroban.ClientConfig{
			RPCEndpoint: preset.RPCEndpoint,
			HorizonURL:  preset.HorizonURL,
			HTTPClient:  httpClient,
		})
	}
}

// Config configures an Orchestrator.
type Config struct {
	// BaseFee is the inclusion fee (0 = DefaultBaseFee).
	BaseFee int64

	// FeeBuffer multiplies the estimated resource fee (zero value = 1).
	FeeBuffer math.LegacyDec

	// FeeSchedule converts resource usage into fee units.
	FeeSchedule FeeSchedule

	// Presets override or extend the built-in network presets.
	Presets map[string]network.Preset
}

// ExecuteOptions carries per-call context recorded with the history record.
type ExecuteOptions struct {
	// Metadata is an open JSON object stored untouched (e.g. {"gas_source": "wallet"}).
	Metadata json.RawMessage
}

// Result is the outcome of a successful Execute.
type Result struct {
	RecordID          string                `json:"recordId,omitempty"`
	TransactionID     string                `json:"transactionId"`
	SubmissionStatus  string                `json:"submissionStatus"`
	RejectionEnvelope string                `json:"rejectionEnvelope,omitempty"`
	FeeUnits          int64                 `json:"feeUnits"`
	CostEstimate      *network.CostEstimate `json:"costEstimate,omitempty"`
	Network           string                `json:"network"`
}

// Orchestrator runs build, sign and submit for one invocation and records every transition.
type Orchestrator struct {
	config   Config
	dial     Dialer
	signer   *Signer
	recorder *Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(config Config, dial Dialer, agent wallet.Agent, writer HistoryWriter, m *metrics.Metrics) *Orchestrator {
	if config.FeeSchedule == (FeeSchedule{}) {
		config.FeeSchedule = DefaultFeeSchedule()
	}
	return &Orchestrator{
		config:   config,
		dial:     dial,
		signer:   NewSigner(agent),
		recorder: NewRecorder(writer, m),
		metrics:  m,
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger.
func (o *Orchestrator) SetLogger(logger *slog.Logger) {
	o.logger = logger
	o.recorder.SetLogger(logger)
}

// Execute builds, signs and submits req. Build errors are returned before any record exists.
// Signing and submission errors are recorded on the history record, then returned unchanged.
// History write failures never surface.
func (o *Orchestrator) Execute(ctx context.Context, req *network.InvocationRequest, opts ExecuteOptions) (*Result, error) {
	preset, err := network.Resolve(req, o.config.Presets)
	if err != nil {
		o.metrics.ObserveExecution(OutcomeBuildError)
		return nil, &BuildError{Stage: StageResolve, Err: err}
	}
	client, err := o.dial(preset)
	if err != nil {
		o.metrics.ObserveExecution(OutcomeBuildError)
		return nil, &BuildError{Stage: StageResolve, Err: err}
	}

	estimator := NewEstimator(client, o.config.FeeSchedule)
	builder := NewBuilder(client, BuilderConfig{
		BaseFee:    o.config.BaseFee,
		FeeBuffer:  o.config.FeeBuffer,
		Estimator:  estimator,
		Assemblers: DefaultAssemblers(client),
	})
	builder.SetLogger(o.logger)

	built, err := builder.Build(ctx, req, preset)
	if err != nil {
		o.metrics.ObserveExecution(OutcomeBuildError)
		return nil, err
	}
	provenance := ""
	if built.CostEstimate != nil {
		provenance = string(built.CostEstimate.Provenance)
	}
	o.metrics.ObserveEstimate(provenance)

	a := o.begin(ctx, req, built, opts)

	signed, err := o.signer.Sign(ctx, built, req.SourceAccount)
	if err != nil {
		o.fail(ctx, a, err)
		return nil, err
	}
	o.advance(ctx, a, history.StatusSigned, &history.Patch{SignedEnvelope: &signed.SignedBytes})

	receipt, err := NewSubmitter(client).Submit(ctx, signed, built.NetworkPassphrase)
	if err != nil {
		o.fail(ctx, a, err)
		return nil, err
	}
	patch := &history.Patch{TransactionID: &receipt.TransactionID}
	if receipt.RejectionEnvelope != "" {
		patch.RejectionEnvelope = &receipt.RejectionEnvelope
	}
	o.advance(ctx, a, history.StatusSubmitted, patch)

	o.metrics.ObserveExecution(OutcomeSubmitted)
	o.logger.Info("transaction submitted",
		"record", a.id,
		"tx", receipt.TransactionID,
		"status", receipt.SubmissionStatus)

	return &Result{
		RecordID:          a.id,
		TransactionID:     receipt.TransactionID,
		SubmissionStatus:  receipt.SubmissionStatus,
		RejectionEnvelope: receipt.RejectionEnvelope,
		FeeUnits:          built.FeeUnits,
		CostEstimate:      built.CostEstimate,
		Network:           built.Network,
	}, nil
}

// attempt is the client-side view of one history record. Its status changes only through transition.
type attempt struct {
	id     string
	status history.Status
}

// transition validates a forward move and returns the patch that persists it.
func (a *attempt) transition(to history.Status, patch *history.Patch) (*history.Patch, error) {
	if !history.CanTransition(a.status, to) {
		return nil, &history.InvalidTransitionError{ID: a.id, From: a.status, To: to}
	}
	if patch == nil {
		patch = &history.Patch{}
	}
	patch.Status = &to
	a.status = to
	return patch, nil
}

func (o *Orchestrator) begin(ctx context.Context, req *network.InvocationRequest, built *network.BuiltEnvelope, opts ExecuteOptions) *attempt {
	rec := &history.Record{
		ContractID:       req.ContractID,
		Method:           req.Method,
		WalletAddress:    req.SourceAccount,
		Network:          built.Network,
		Status:           history.StatusPendingSignature,
		FeeUnits:         built.FeeUnits,
		CostEstimate:     built.CostEstimate,
		UnsignedEnvelope: built.UnsignedEnvelope,
		Metadata:         opts.Metadata,
	}
	return &attempt{
		id:     o.recorder.TryCreate(ctx, rec),
		status: history.StatusPendingSignature,
	}
}

func (o *Orchestrator) advance(ctx context.Context, a *attempt, to history.Status, patch *history.Patch) {
	p, err := a.transition(to, patch)
	if err != nil {
		o.logger.Error("refusing history transition", "error", err)
		return
	}
	o.recorder.TryUpdate(ctx, a.id, p)
}

// fail annotates the record with the error; cancellation is recorded distinctly from failure.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, cause error) {
	status, outcome := history.StatusFailed, OutcomeFailed
	if IsSigningCancelled(cause) {
		status, outcome = history.StatusCancelled, OutcomeCancelled
	}
	msg := cause.Error()
	o.advance(ctx, a, status, &history.Patch{ErrorMessage: &msg})
	o.metrics.ObserveExecution(outcome)

	o.logger.Warn("transaction not submitted",
		"record", a.id,
		"status", status,
		"error", fmt.Sprint(cause))
}
