// pkg/network/capabilities.go
package network

// Capabilities describes what a connected RPC server supports.
// Envelope assembly strategies consult it to decide whether they can run.
type Capabilities struct {
	// Version is the RPC server version string, e.g. "v21.4.1".
	Version string `json:"version"`

	// ProtocolVersion is the ledger protocol version the server reports.
	ProtocolVersion int `json:"protocolVersion"`

	// Features lists optional capabilities, e.g. ["transaction-data", "prepare-transaction"].
	Features []string `json:"features"`
}

// Common capability feature constants.
const (
	// FeatureTransactionData means simulation responses carry a resource footprint
	// that can be attached to the envelope locally.
	FeatureTransactionData = "transaction-data"

	// FeaturePrepareTransaction means the server assembles simulated envelopes itself.
	FeaturePrepareTransaction = "prepare-transaction"

	// FeatureResourceEstimation means the server answers estimateResourceFee.
	FeatureResourceEstimation = "resource-estimation"
)

// Has reports whether the capability set includes feature.
func (c Capabilities) Has(feature string) bool {
	for _, f := range c.Features {
		if f == feature {
			return true
		}
	}
	return false
}
