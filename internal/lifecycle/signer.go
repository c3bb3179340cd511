// internal/lifecycle/signer.go
package lifecycle

import (
	"context"
	"fmt"

	"github.com/altuslabsxyz/rentflow/internal/wallet"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// Signer delegates signing to an external agent and normalizes its answer.
type Signer struct {
	agent wallet.Agent
}

// NewSigner creates a signer over agent.
func NewSigner(agent wallet.Agent) *Signer {
	return &Signer{agent: agent}
}

// Sign asks the agent to sign the built envelope for address.
// The result is a signed envelope, a *SigningCancelledError, or a *SigningFailedError.
func (s *Signer) Sign(ctx context.Context, built *network.BuiltEnvelope, address string) (*network.SignedEnvelope, error) {
	resp, err := s.agent.SignEnvelope(ctx, built.UnsignedEnvelope, wallet.SignOptions{
		NetworkPassphrase: built.NetworkPassphrase,
		Address:           address,
	})
	return Normalize(resp, err)
}

// Normalize folds an agent answer and error into exactly one outcome.
func Normalize(resp wallet.Response, agentErr error) (*network.SignedEnvelope, error) {
	if agentErr != nil {
		return nil, classifySigningError(agentErr.Error(), agentErr)
	}

	switch resp.Kind {
	case wallet.KindError:
		return nil, classifySigningError(resp.Value, nil)
	case wallet.KindText, wallet.KindSignedTx:
		return validateSigned(resp.Value)
	default:
		return nil, &SigningFailedError{Message: fmt.Sprintf("unrecognized agent response %s", resp.Kind)}
	}
}

func validateSigned(text string) (*network.SignedEnvelope, error) {
	env, err := soroban.DecodeEnvelope(text)
	if err != nil {
		return nil, &SigningFailedError{Message: "agent returned a malformed envelope", Err: err}
	}
	if len(env.Signatures()) == 0 {
		return nil, &SigningFailedError{Message: "agent returned an envelope without signatures"}
	}
	return &network.SignedEnvelope{SignedBytes: text}, nil
}
