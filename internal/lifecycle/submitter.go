// internal/lifecycle/submitter.go
package lifecycle

import (
	"context"
	"fmt"

	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// Submitter broadcasts signed envelopes exactly once.
type Submitter struct {
	broadcaster network.Broadcaster
}

// NewSubmitter creates a submitter over broadcaster.
func NewSubmitter(broadcaster network.Broadcaster) *Submitter {
	return &Submitter{broadcaster: broadcaster}
}

// Submit broadcasts the envelope. The endpoint's hash is passed through verbatim;
// when it is missing the id is derived from the envelope itself.
// The receipt reports acceptance for broadcast, not ledger confirmation.
func (s *Submitter) Submit(ctx context.Context, signed *network.SignedEnvelope, passphrase string) (*network.SubmissionReceipt, error) {
	if signed == nil || signed.SignedBytes == "" {
		return nil, &SubmissionError{Err: fmt.Errorf("%w: empty signed envelope", network.ErrInvalidEnvelope)}
	}

	res, err := s.broadcaster.SendTransaction(ctx, signed.SignedBytes)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}

	id := res.Hash
	if id == "" {
		id, err = soroban.TransactionID(signed.SignedBytes, passphrase)
		if err != nil {
			return nil, &SubmissionError{Err: fmt.Errorf("derive transaction id: %w", err)}
		}
	}

	return &network.SubmissionReceipt{
		TransactionID:     id,
		SubmissionStatus:  res.Status,
		RejectionEnvelope: res.RejectionEnvelope,
	}, nil
}
