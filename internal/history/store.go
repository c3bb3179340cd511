// internal/history/store.go
package history

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for simple checks.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// NotFoundError is returned when a record is not found.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %q not found", e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// AlreadyExistsError is returned when creating a record whose id is taken.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("record %q already exists", e.ID)
}

// Is lets errors.Is match ErrAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// IsAlreadyExists returns true if err is or wraps an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// ListOptions configures record listing.
type ListOptions struct {
	// ContractID filters by contract.
	ContractID string
	// WalletAddress filters by source account.
	WalletAddress string
	// Status filters by lifecycle status.
	Status Status
	// Limit is the maximum number of results (0 = unlimited).
	Limit int
}

// matches reports whether r passes the filters.
func (o ListOptions) matches(r *Record) bool {
	if o.ContractID != "" && r.ContractID != o.ContractID {
		return false
	}
	if o.WalletAddress != "" && r.WalletAddress != o.WalletAddress {
		return false
	}
	if o.Status != "" && r.Status != o.Status {
		return false
	}
	return true
}

// Store persists history records.
// Records are never deleted through this interface; retention belongs elsewhere.
type Store interface {
	// Create stores a new record. An empty ID is filled with a fresh one.
	Create(ctx context.Context, r *Record) error

	// Get retrieves a record by id.
	Get(ctx context.Context, id string) (*Record, error)

	// Update applies a patch to the record, enforcing forward-only status transitions,
	// and returns the updated record.
	Update(ctx context.Context, id string, p *Patch) (*Record, error)

	// List returns records matching opts, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Close releases the store.
	Close() error
}
