// internal/wallet/agent.go
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Agent is an external, user-controlled signing agent.
// A returned error is the agent's own failure report (for example "User rejected");
// callers normalize it together with the Response.
type Agent interface {
	SignEnvelope(ctx context.Context, unsignedEnvelope string, opts SignOptions) (Response, error)
}

// SignOptions are passed to the agent with each request.
type SignOptions struct {
	NetworkPassphrase string `json:"networkPassphrase"`
	Address           string `json:"address,omitempty"`
}

// ResponseKind tags the shape a signing agent answered with.
type ResponseKind int

const (
	// KindText is a bare signed envelope string.
	KindText ResponseKind = iota
	// KindError is an {error} object.
	KindError
	// KindSignedTx is a {signedTxXdr} object.
	KindSignedTx
)

func (k ResponseKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindError:
		return "error"
	case KindSignedTx:
		return "signedTx"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is the tagged union of signing agent answers.
// Value holds the envelope for KindText and KindSignedTx and the message for KindError.
type Response struct {
	Kind  ResponseKind
	Value string
}

// TextResponse wraps a bare envelope string.
func TextResponse(envelope string) Response {
	return Response{Kind: KindText, Value: envelope}
}

// ErrorResponse wraps an agent-reported error message.
func ErrorResponse(msg string) Response {
	return Response{Kind: KindError, Value: msg}
}

// SignedTxResponse wraps a {signedTxXdr} answer.
func SignedTxResponse(envelope string) Response {
	return Response{Kind: KindSignedTx, Value: envelope}
}

// ErrUnrecognizedResponse is returned by ParseResponse for shapes outside the union.
var ErrUnrecognizedResponse = errors.New("unrecognized signing agent response")

// ParseResponse decodes a JSON agent answer into a Response.
// Accepted shapes: "envelope", {"error": "msg"}, {"error": {"message": "msg"}}, {"signedTxXdr": "envelope"}.
func ParseResponse(raw []byte) (Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Response{}, fmt.Errorf("%w: empty body", ErrUnrecognizedResponse)
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrUnrecognizedResponse, err)
		}
		return TextResponse(text), nil
	}

	var obj struct {
		Error       json.RawMessage `json:"error"`
		SignedTxXdr *string         `json:"signedTxXdr"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUnrecognizedResponse, err)
	}

	if len(obj.Error) > 0 && !bytes.Equal(obj.Error, []byte("null")) {
		return ErrorResponse(errorMessage(obj.Error)), nil
	}
	if obj.SignedTxXdr != nil {
		return SignedTxResponse(*obj.SignedTxXdr), nil
	}
	return Response{}, fmt.Errorf("%w: %s", ErrUnrecognizedResponse, truncate(string(raw), 80))
}

// errorMessage extracts a message from a string or {message} error value.
func errorMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
