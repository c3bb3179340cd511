// pkg/network/soroban/envelope.go
package soroban

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/stellar/go-stellar-sdk/keypair"
	stellarnet "github.com/stellar/go-stellar-sdk/network"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// InvokeParams describes the single contract call carried by an envelope.
type InvokeParams struct {
	// SourceAccount is the G... address paying the fee.
	SourceAccount string

	// Sequence is the sequence number the transaction consumes (account sequence + 1).
	Sequence int64

	// Fee is the maximum total fee in stroops.
	Fee int64

	// MaxTime closes the validity window, in unix seconds (0 = unbounded).
	MaxTime int64

	ContractID string
	Function   string
	Args       []xdr.ScVal
}

// Envelope is a v1 transaction envelope holding one InvokeHostFunction operation.
type Envelope struct {
	env xdr.TransactionEnvelope
}

// NewInvokeEnvelope builds an unsigned envelope for p.
func NewInvokeEnvelope(p InvokeParams) (*Envelope, error) {
	source, err := xdr.AddressToMuxedAccount(p.SourceAccount)
	if err != nil {
		return nil, fmt.Errorf("%w: source account %q: %v", network.ErrInvalidEnvelope, p.SourceAccount, err)
	}
	contract, err := ScAddress(p.ContractID)
	if err != nil {
		return nil, err
	}
	if !IsSymbol(p.Function) {
		return nil, fmt.Errorf("%w: function name %q is not a valid symbol", network.ErrInvalidEnvelope, p.Function)
	}
	fee, err := feeUint32(p.Fee)
	if err != nil {
		return nil, err
	}

	op := xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypeInvokeHostFunction,
			InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
				HostFunction: xdr.HostFunction{
					Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
					InvokeContract: &xdr.InvokeContractArgs{
						ContractAddress: contract,
						FunctionName:    xdr.ScSymbol(p.Function),
						Args:            p.Args,
					},
				},
			},
		},
	}

	return &Envelope{env: xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: source,
				Fee:           fee,
				SeqNum:        xdr.SequenceNumber(p.Sequence),
				Cond: xdr.Preconditions{
					Type:       xdr.PreconditionTypePrecondTime,
					TimeBounds: &xdr.TimeBounds{MaxTime: xdr.TimePoint(p.MaxTime)},
				},
				Memo:       xdr.Memo{Type: xdr.MemoTypeMemoNone},
				Operations: []xdr.Operation{op},
			},
		},
	}}, nil
}

// DecodeEnvelope parses base64 XDR envelope text.
// Only v1 transaction envelopes with at least one operation are accepted.
func DecodeEnvelope(text string) (*Envelope, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty envelope", network.ErrInvalidEnvelope)
	}
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(text, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", network.ErrInvalidEnvelope, err)
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx || env.V1 == nil {
		return nil, fmt.Errorf("%w: unsupported envelope type %s", network.ErrInvalidEnvelope, env.Type)
	}
	if len(env.V1.Tx.Operations) == 0 {
		return nil, fmt.Errorf("%w: no operations", network.ErrInvalidEnvelope)
	}
	return &Envelope{env: env}, nil
}

// Encode returns the envelope as base64 XDR.
func (e *Envelope) Encode() (string, error) {
	if e == nil || e.env.V1 == nil {
		return "", fmt.Errorf("%w: nil envelope", network.ErrInvalidEnvelope)
	}
	text, err := xdr.MarshalBase64(e.env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return text, nil
}

// Clone returns a deep copy.
func (e *Envelope) Clone() (*Envelope, error) {
	text, err := e.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(text)
}

// XDR returns the underlying envelope.
func (e *Envelope) XDR() xdr.TransactionEnvelope {
	return e.env
}

// Fee returns the maximum total fee.
func (e *Envelope) Fee() int64 {
	return int64(e.env.V1.Tx.Fee)
}

// SetFee replaces the maximum total fee.
func (e *Envelope) SetFee(fee int64) error {
	v, err := feeUint32(fee)
	if err != nil {
		return err
	}
	e.env.V1.Tx.Fee = v
	return nil
}

// Sequence returns the sequence number the transaction consumes.
func (e *Envelope) Sequence() int64 {
	return int64(e.env.V1.Tx.SeqNum)
}

// MaxTime returns the upper time bound, or 0 when unbounded.
func (e *Envelope) MaxTime() int64 {
	if tb := e.env.V1.Tx.Cond.TimeBounds; tb != nil {
		return int64(tb.MaxTime)
	}
	return 0
}

// Invocation returns the contract call of the first operation, or nil for other operations.
func (e *Envelope) Invocation() *xdr.InvokeContractArgs {
	op := e.env.V1.Tx.Operations[0].Body.InvokeHostFunctionOp
	if op == nil {
		return nil
	}
	return op.HostFunction.InvokeContract
}

// SorobanData returns the attached resource data, or nil when none is attached.
func (e *Envelope) SorobanData() *xdr.SorobanTransactionData {
	if e.env.V1.Tx.Ext.V != 1 {
		return nil
	}
	return e.env.V1.Tx.Ext.SorobanData
}

// SetSorobanData attaches resource data to the transaction.
func (e *Envelope) SetSorobanData(data xdr.SorobanTransactionData) {
	e.env.V1.Tx.Ext = xdr.TransactionExt{V: 1, SorobanData: &data}
}

// Signatures returns the decorated signatures on the envelope.
func (e *Envelope) Signatures() []xdr.DecoratedSignature {
	return e.env.V1.Signatures
}

// Hash returns the network-scoped transaction hash. Signatures do not contribute.
func (e *Envelope) Hash(passphrase string) ([32]byte, error) {
	return stellarnet.HashTransactionInEnvelope(e.env, passphrase)
}

// Sign appends kp's signature over the transaction hash.
func (e *Envelope) Sign(passphrase string, kp *keypair.Full) error {
	hash, err := e.Hash(passphrase)
	if err != nil {
		return fmt.Errorf("hash transaction: %w", err)
	}
	sig, err := kp.SignDecorated(hash[:])
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	e.env.V1.Signatures = append(e.env.V1.Signatures, sig)
	return nil
}

// TransactionID derives the hex transaction id the network assigns to envelope text.
func TransactionID(envelope, passphrase string) (string, error) {
	env, err := DecodeEnvelope(envelope)
	if err != nil {
		return "", err
	}
	hash, err := env.Hash(passphrase)
	if err != nil {
		return "", fmt.Errorf("hash transaction: %w", err)
	}
	return hex.EncodeToString(hash[:]), nil
}

// DecodeTransactionData parses base64 SorobanTransactionData.
func DecodeTransactionData(text string) (xdr.SorobanTransactionData, error) {
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(text, &data); err != nil {
		return xdr.SorobanTransactionData{}, fmt.Errorf("decode transaction data: %w", err)
	}
	return data, nil
}

// SummarizeTransactionData decodes text and reports its resources.
// Footprint keys are returned as base64 LedgerKey XDR.
func SummarizeTransactionData(text string) (*network.TransactionData, error) {
	data, err := DecodeTransactionData(text)
	if err != nil {
		return nil, err
	}
	res := data.Resources
	summary := &network.TransactionData{
		XDR:          text,
		Instructions: int64(res.Instructions),
		ReadBytes:    int64(res.DiskReadBytes),
		WriteBytes:   int64(res.WriteBytes),
		ResourceFee:  int64(data.ResourceFee),
	}
	if summary.ReadOnly, err = encodeKeys(res.Footprint.ReadOnly); err != nil {
		return nil, err
	}
	if summary.ReadWrite, err = encodeKeys(res.Footprint.ReadWrite); err != nil {
		return nil, err
	}
	return summary, nil
}

func encodeKeys(keys []xdr.LedgerKey) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		text, err := xdr.MarshalBase64(key)
		if err != nil {
			return nil, fmt.Errorf("encode footprint key: %w", err)
		}
		out = append(out, text)
	}
	return out, nil
}

// ScAddress converts a G... account or C... contract strkey into an ScAddress.
func ScAddress(address string) (xdr.ScAddress, error) {
	var wire []byte
	switch {
	case strkey.IsValidEd25519PublicKey(address):
		raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
		if err != nil {
			return xdr.ScAddress{}, fmt.Errorf("%w: address %q: %v", network.ErrInvalidEnvelope, address, err)
		}
		// account discriminant, then the ed25519 public key union
		wire = binary.BigEndian.AppendUint32(wire, uint32(xdr.ScAddressTypeScAddressTypeAccount))
		wire = binary.BigEndian.AppendUint32(wire, uint32(xdr.PublicKeyTypePublicKeyTypeEd25519))
		wire = append(wire, raw...)
	default:
		raw, err := strkey.Decode(strkey.VersionByteContract, address)
		if err != nil {
			return xdr.ScAddress{}, fmt.Errorf("%w: address %q: %v", network.ErrInvalidEnvelope, address, err)
		}
		wire = binary.BigEndian.AppendUint32(wire, uint32(xdr.ScAddressTypeScAddressTypeContract))
		wire = append(wire, raw...)
	}

	var addr xdr.ScAddress
	if err := addr.UnmarshalBinary(wire); err != nil {
		return xdr.ScAddress{}, fmt.Errorf("%w: address %q: %v", network.ErrInvalidEnvelope, address, err)
	}
	return addr, nil
}

// IsAccount reports whether s is a valid G... account strkey.
func IsAccount(s string) bool {
	return strkey.IsValidEd25519PublicKey(s)
}

// IsAddress reports whether s is a valid account or contract strkey.
func IsAddress(s string) bool {
	if strkey.IsValidEd25519PublicKey(s) {
		return true
	}
	_, err := strkey.Decode(strkey.VersionByteContract, s)
	return err == nil
}

func feeUint32(fee int64) (xdr.Uint32, error) {
	if fee < 0 || fee > math.MaxUint32 {
		return 0, fmt.Errorf("%w: fee %d out of range", network.ErrInvalidEnvelope, fee)
	}
	return xdr.Uint32(fee), nil
}
