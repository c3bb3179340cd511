// pkg/network/invocation.go
package network

import (
	"context"
	"time"
)

// DefaultTimeoutSeconds is the validity window applied to an envelope when the request does not set one.
const DefaultTimeoutSeconds = 60

// InvocationRequest describes a single contract invocation attempt.
// A request is immutable; a retry constructs a new one.
type InvocationRequest struct {
	// SourceAccount is the public key of the account paying for and signing the invocation.
	SourceAccount string `json:"sourceAccount"`

	// ContractID is the address of the contract being invoked.
	ContractID string `json:"contractId"`

	// Method is the contract function name.
	Method string `json:"method"`

	// Args are the function arguments, encoded as JSON values.
	Args []any `json:"args"`

	// Network is the network preset name (e.g., "testnet").
	Network string `json:"network"`

	// RPCEndpoint overrides the preset's RPC endpoint.
	RPCEndpoint string `json:"rpcEndpoint,omitempty"`

	// NetworkPassphrase overrides the preset's passphrase.
	NetworkPassphrase string `json:"networkPassphrase,omitempty"`

	// TimeoutSeconds bounds the envelope validity window (0 = DefaultTimeoutSeconds).
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

// Timeout returns the validity window for the request.
func (r *InvocationRequest) Timeout() time.Duration {
	if r == nil || r.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Provenance identifies which strategy produced a CostEstimate.
type Provenance string

const (
	ProvenanceDedicated  Provenance = "dedicated-estimation"
	ProvenanceSimulation Provenance = "simulation"
)

// CostEstimate is a normalized resource-fee estimate.
type CostEstimate struct {
	FeeUnits        int64      `json:"feeUnits"`
	Provenance      Provenance `json:"provenance"`
	CPUInstructions int64      `json:"cpuInstructions,omitempty"`
	ReadBytes       int64      `json:"readBytes,omitempty"`
	WriteBytes      int64      `json:"writeBytes,omitempty"`
}

// BuiltEnvelope is a ready-to-sign envelope with its fee attached.
type BuiltEnvelope struct {
	// UnsignedEnvelope is the serialized envelope as base64 text.
	UnsignedEnvelope string `json:"unsignedEnvelope"`

	// FeeUnits is the total fee (baseline inclusion fee plus resource fee).
	FeeUnits int64 `json:"feeUnits"`

	// CostEstimate is nil when no estimation strategy produced a positive fee.
	CostEstimate *CostEstimate `json:"costEstimate"`

	Network           string `json:"network"`
	NetworkPassphrase string `json:"networkPassphrase"`
	RPCEndpoint       string `json:"rpcEndpoint"`
}

// SignedEnvelope holds the serialized signed envelope returned by a signing agent.
type SignedEnvelope struct {
	SignedBytes string `json:"signedBytes"`
}

// SubmissionReceipt is the broadcast endpoint's answer for a signed envelope.
// Acceptance for broadcast is not ledger confirmation.
type SubmissionReceipt struct {
	TransactionID     string `json:"transactionId"`
	SubmissionStatus  string `json:"submissionStatus"`
	RejectionEnvelope string `json:"rejectionEnvelope,omitempty"`
}

// Account is the ledger state needed to build an envelope.
type Account struct {
	AccountID string `json:"accountId"`
	Sequence  int64  `json:"sequence"`
}

// ResourceUsage summarizes the resources consumed by a simulated invocation.
type ResourceUsage struct {
	CPUInstructions int64 `json:"cpuInstructions"`
	ReadBytes       int64 `json:"readBytes"`
	WriteBytes      int64 `json:"writeBytes"`
}

// SimulationResult is the outcome of simulating an unsigned envelope.
type SimulationResult struct {
	// MinResourceFee is the network-computed resource fee (0 when absent).
	MinResourceFee int64 `json:"minResourceFee"`

	// Usage is the resource-usage summary.
	Usage ResourceUsage `json:"usage"`

	// TransactionData is the resource footprint to attach during assembly.
	// Nil when the endpoint did not return one.
	TransactionData *TransactionData `json:"transactionData,omitempty"`

	// LatestLedger is the ledger the simulation ran against.
	LatestLedger int64 `json:"latestLedger,omitempty"`
}

// TransactionData carries resource limits and footprint for a contract invocation.
// XDR is the authoritative base64 SorobanTransactionData; the other fields summarize it.
type TransactionData struct {
	XDR          string   `json:"xdr"`
	Instructions int64    `json:"instructions"`
	ReadBytes    int64    `json:"readBytes"`
	WriteBytes   int64    `json:"writeBytes"`
	ReadOnly     []string `json:"readOnly,omitempty"`
	ReadWrite    []string `json:"readWrite,omitempty"`
	ResourceFee  int64    `json:"resourceFee"`
}

// BroadcastResult is the raw response of the transaction-ingestion endpoint.
type BroadcastResult struct {
	// Hash may be empty when the endpoint does not report one.
	Hash              string `json:"hash,omitempty"`
	Status            string `json:"status"`
	RejectionEnvelope string `json:"errorResultXdr,omitempty"`
}

// LedgerTransaction is the historical-ledger view of a transaction.
type LedgerTransaction struct {
	Found          bool   `json:"found"`
	Successful     bool   `json:"successful"`
	LedgerSequence int64  `json:"ledgerSequence,omitempty"`
	ResultEnvelope string `json:"resultEnvelope,omitempty"`
}

// AccountReader fetches account state from the ledger.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}

// Simulator runs an envelope through the network's simulation endpoint.
type Simulator interface {
	Simulate(ctx context.Context, envelope string) (*SimulationResult, error)
}

// FeeEstimator is the dedicated resource-estimation capability.
type FeeEstimator interface {
	EstimateResourceFee(ctx context.Context, envelope string) (*CostEstimate, error)
}

// Preparer assembles a simulated envelope server-side.
type Preparer interface {
	PrepareTransaction(ctx context.Context, envelope string) (string, error)
}

// Broadcaster submits a signed envelope to the network.
type Broadcaster interface {
	SendTransaction(ctx context.Context, envelope string) (*BroadcastResult, error)
}

// TxQuerier resolves final on-chain truth for a transaction hash.
type TxQuerier interface {
	GetTransaction(ctx context.Context, hash string) (*LedgerTransaction, error)
}

// CapabilityReader reports what the connected server supports.
type CapabilityReader interface {
	Capabilities(ctx context.Context) (Capabilities, error)
}

// Ledger is the full set of ledger capabilities a network client exposes.
type Ledger interface {
	AccountReader
	Simulator
	FeeEstimator
	Broadcaster
	TxQuerier
	CapabilityReader
}
