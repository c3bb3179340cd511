// internal/history/record.go
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// Status is the lifecycle status of a transaction record.
type Status string

// Lifecycle statuses.
const (
	StatusPendingSignature Status = "pending_signature"
	StatusSigned           Status = "signed"
	StatusSubmitted        Status = "submitted"
	StatusPending          Status = "pending"
	StatusSuccess          Status = "success"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

// OnchainStatus is the ledger-confirmed outcome of a transaction.
type OnchainStatus string

// On-chain statuses.
const (
	OnchainPending      OnchainStatus = "pending"
	OnchainNotSubmitted OnchainStatus = "not_submitted"
	OnchainSuccess      OnchainStatus = "success"
	OnchainFailed       OnchainStatus = "failed"
)

// rank orders statuses along the forward-only lifecycle. Terminal statuses share the top rank.
var rank = map[Status]int{
	StatusPendingSignature: 0,
	StatusSigned:           1,
	StatusSubmitted:        2,
	StatusPending:          3,
	StatusSuccess:          4,
	StatusFailed:           4,
	StatusCancelled:        4,
}

// ParseStatus maps an arbitrary string onto a Status.
// Unrecognized values fold back to StatusPendingSignature.
func ParseStatus(s string) Status {
	st := Status(s)
	if _, ok := rank[st]; ok {
		return st
	}
	return StatusPendingSignature
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return rank[s] == rank[StatusSuccess] && s.Valid()
}

// ParseOnchainStatus maps an arbitrary string onto an OnchainStatus.
// Unrecognized values are treated as pending.
func ParseOnchainStatus(s string) OnchainStatus {
	switch OnchainStatus(s) {
	case OnchainNotSubmitted, OnchainSuccess, OnchainFailed:
		return OnchainStatus(s)
	default:
		return OnchainPending
	}
}

// Valid reports whether s is a known on-chain status.
func (s OnchainStatus) Valid() bool {
	switch s {
	case OnchainPending, OnchainNotSubmitted, OnchainSuccess, OnchainFailed:
		return true
	}
	return false
}

// Terminal reports whether the on-chain status is final.
func (s OnchainStatus) Terminal() bool {
	return s == OnchainSuccess || s == OnchainFailed
}

// Record is the persisted history of one invocation attempt.
type Record struct {
	ID                string                `json:"id"`
	ContractID        string                `json:"contractId"`
	Method            string                `json:"method"`
	WalletAddress     string                `json:"walletAddress"`
	Network           string                `json:"network"`
	Status            Status                `json:"status"`
	FeeUnits          int64                 `json:"feeUnits,omitempty"`
	CostEstimate      *network.CostEstimate `json:"costEstimate,omitempty"`
	UnsignedEnvelope  string                `json:"unsignedEnvelope,omitempty"`
	SignedEnvelope    string                `json:"signedEnvelope,omitempty"`
	TransactionID     string                `json:"transactionId,omitempty"`
	RejectionEnvelope string                `json:"rejectionEnvelope,omitempty"`
	ErrorMessage      string                `json:"errorMessage,omitempty"`
	OnchainStatus     OnchainStatus         `json:"onchainStatus,omitempty"`
	Ledger            int64                 `json:"ledger,omitempty"`
	Metadata          json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// StatusReport is the status view of one record, as served by GET /transactions/{id}/status.
type StatusReport struct {
	Status        string `json:"status"`
	TxHash        string `json:"tx_hash"`
	OnchainStatus string `json:"onchain_status"`
	Ledger        int64  `json:"ledger,omitempty"`
}

// Patch is a partial update to a Record. Nil fields are left untouched.
type Patch struct {
	Status         *Status        `json:"status,omitempty"`
	SignedEnvelope *string        `json:"signedEnvelope,omitempty"`
	TransactionID  *string        `json:"transactionId,omitempty"`
	ErrorMessage   *string        `json:"errorMessage,omitempty"`
	OnchainStatus  *OnchainStatus `json:"onchainStatus,omitempty"`
	Ledger         *int64         `json:"ledger,omitempty"`

	// RejectionEnvelope is the network's rejection payload reported at broadcast time.
	RejectionEnvelope *string `json:"rejectionEnvelope,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.Status == nil && p.SignedEnvelope == nil && p.TransactionID == nil &&
		p.ErrorMessage == nil && p.OnchainStatus == nil && p.Ledger == nil && p.RejectionEnvelope == nil)
}

// InvalidTransitionError is returned when a patch would move a record backwards.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("record %q: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// IsInvalidTransition returns true if err is or wraps an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// CanTransition reports whether a record may move from one status to another.
// Same-status patches are allowed so non-status fields can be updated in place.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	return rank[to] > rank[from]
}

// Apply validates the patch against the record's current status and applies it.
// Fields not named in the patch keep their previous values, so failure never erases build-time data.
func (r *Record) Apply(p *Patch, now time.Time) error {
	if p.IsEmpty() {
		return nil
	}
	if p.Status != nil {
		if !CanTransition(r.Status, *p.Status) {
			return &InvalidTransitionError{ID: r.ID, From: r.Status, To: *p.Status}
		}
		r.Status = *p.Status
	}
	if p.SignedEnvelope != nil {
		r.SignedEnvelope = *p.SignedEnvelope
	}
	if p.TransactionID != nil {
		r.TransactionID = *p.TransactionID
	}
	if p.ErrorMessage != nil {
		r.ErrorMessage = *p.ErrorMessage
	}
	if p.OnchainStatus != nil {
		r.OnchainStatus = *p.OnchainStatus
	}
	if p.Ledger != nil {
		r.Ledger = *p.Ledger
	}
	if p.RejectionEnvelope != nil {
		r.RejectionEnvelope = *p.RejectionEnvelope
	}
	r.UpdatedAt = now
	return nil
}

// DeriveOnchainStatus returns the on-chain status implied by a record when none was stored.
func (r *Record) DeriveOnchainStatus() OnchainStatus {
	if r.OnchainStatus != "" {
		return r.OnchainStatus
	}
	switch r.Status {
	case StatusSuccess:
		return OnchainSuccess
	case StatusFailed, StatusCancelled:
		if r.TransactionID == "" {
			return OnchainNotSubmitted
		}
		return OnchainFailed
	case StatusSubmitted, StatusPending:
		return OnchainPending
	default:
		return OnchainNotSubmitted
	}
}
