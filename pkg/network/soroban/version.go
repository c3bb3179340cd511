// pkg/network/soroban/version.go
package soroban

import (
	"context"
	"fmt"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// minTransactionDataProtocol is the first protocol whose simulation responses carry transaction data.
const minTransactionDataProtocol = 20

type versionInfoResponse struct {
	Version         string   `json:"version"`
	ProtocolVersion int      `json:"protocolVersion"`
	Features        []string `json:"features,omitempty"`
}

// Capabilities queries getVersionInfo and derives the feature set.
// Servers that advertise features explicitly are trusted; otherwise features are inferred
// from the protocol version. Servers without getVersionInfo are treated as protocol 0.
func (c *Client) Capabilities(ctx context.Context) (network.Capabilities, error) {
	var resp versionInfoResponse
	if err := c.call(ctx, "getVersionInfo", nil, &resp); err != nil {
		if isMethodNotFound(err) {
			return network.Capabilities{}, nil
		}
		return network.Capabilities{}, fmt.Errorf("failed to query version info: %w", err)
	}

	caps := network.Capabilities{
		Version:         resp.Version,
		ProtocolVersion: resp.ProtocolVersion,
		Features:        resp.Features,
	}
	if len(caps.Features) == 0 {
		caps.Features = detectFeatures(resp.ProtocolVersion)
	}
	return caps, nil
}

// detectFeatures infers features from the protocol version.
func detectFeatures(protocol int) []string {
	var features []string
	if protocol >= minTransactionDataProtocol {
		features = append(features, network.FeatureTransactionData)
	}
	return features
}
