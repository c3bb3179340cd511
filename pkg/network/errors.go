// pkg/network/errors.go
package network

import "errors"

// Sentinel errors shared by ledger client implementations.
var (
	ErrAccountNotFound  = errors.New("account unknown")
	ErrMethodNotFound   = errors.New("RPC method not supported")
	ErrInvalidEnvelope  = errors.New("invalid envelope")
	ErrSimulationFailed = errors.New("simulation failed")
)
