// internal/lifecycle/errors.go
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Base errors for lifecycle operations.
var (
	ErrSigningCancelled = errors.New("signing cancelled by user")
	ErrNoAssembler      = errors.New("no envelope assembly mechanism available for this network client")
	ErrInvalidRequest   = errors.New("invalid invocation request")
)

// BuildStage identifies where envelope construction failed.
type BuildStage string

const (
	StageResolve      BuildStage = "resolve"
	StageValidate     BuildStage = "validate"
	StageAccount      BuildStage = "account"
	StageSimulate     BuildStage = "simulate"
	StageCapabilities BuildStage = "capabilities"
	StageAssemble     BuildStage = "assemble"
)

// BuildError is returned when no complete envelope could be produced. It is not retryable.
type BuildError struct {
	Stage BuildStage
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed [%s]: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// SigningCancelledError is returned when the signing agent reports that the user declined.
// It matches ErrSigningCancelled with errors.Is.
type SigningCancelledError struct {
	Message string
	Err     error
}

func (e *SigningCancelledError) Error() string {
	return fmt.Sprintf("signing cancelled: %s", e.Message)
}

// Is lets errors.Is match ErrSigningCancelled.
func (e *SigningCancelledError) Is(target error) bool {
	return target == ErrSigningCancelled
}

func (e *SigningCancelledError) Unwrap() error {
	return e.Err
}

// SigningFailedError is any other signing agent failure.
type SigningFailedError struct {
	Message string
	Err     error
}

func (e *SigningFailedError) Error() string {
	return fmt.Sprintf("signing failed: %s", e.Message)
}

func (e *SigningFailedError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned when the broadcast itself could not be completed.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PersistenceError describes a failed history write. It is logged, never returned from Execute.
type PersistenceError struct {
	Operation string
	RecordID  string
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("history %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("history %s of %s failed: %v", e.Operation, e.RecordID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsSigningCancelled reports whether err is a user cancellation.
func IsSigningCancelled(err error) bool {
	return errors.Is(err, ErrSigningCancelled)
}

// cancelVocabulary lists substrings that mark an agent message as a user cancellation.
var cancelVocabulary = []string{"cancel", "declined", "reject", "denied"}

// IsCancellationMessage reports whether an agent message means the user said no.
func IsCancellationMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, word := range cancelVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// classifySigningError maps an agent message onto the typed signing outcome.
func classifySigningError(msg string, cause error) error {
	if IsCancellationMessage(msg) {
		return &SigningCancelledError{Message: msg, Err: cause}
	}
	return &SigningFailedError{Message: msg, Err: cause}
}

// ErrorWithSuggestion returns a recovery hint for common lifecycle errors.
func ErrorWithSuggestion(err error) string {
	var buildErr *BuildError
	switch {
	case IsSigningCancelled(err):
		return "The request was declined in the wallet; run the command again to retry"
	case errors.Is(err, ErrNoAssembler):
		return "The RPC server supports neither simulation footprints nor prepareTransaction; use a newer RPC endpoint"
	case errors.As(err, &buildErr) && buildErr.Stage == StageAccount:
		return "Fund the source account on this network before invoking contracts"
	default:
		return ""
	}
}
