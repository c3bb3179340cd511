// internal/lifecycle/fakes_test.go
package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/strkey"
	"github.com/stellar/go-stellar-sdk/xdr"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/wallet"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

const testPassphrase = "Test SDF Network ; September 2015"

var (
	testSigner   = keypair.MustRandom()
	testAccount  = testSigner.Address()
	testContract = strkey.MustEncode(strkey.VersionByteContract, bytes.Repeat([]byte{7}, 32))
)

// testTransactionData returns simulated resource data carrying resourceFee.
func testTransactionData(resourceFee int64) *network.TransactionData {
	data := xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Instructions:  120000,
			DiskReadBytes: 2048,
			WriteBytes:    512,
		},
		ResourceFee: xdr.Int64(resourceFee),
	}
	text, err := xdr.MarshalBase64(data)
	if err != nil {
		panic(err)
	}
	summary, err := soroban.SummarizeTransactionData(text)
	if err != nil {
		panic(err)
	}
	return summary
}

// fakeLedger is an in-memory LedgerClient.
type fakeLedger struct {
	accounts    map[string]int64
	sim         *network.SimulationResult
	simErr      error
	estimate    *network.CostEstimate
	estimateErr error
	caps        network.Capabilities
	capsErr     error
	prepare     func(envelope string) (string, error)
	send        *network.BroadcastResult
	sendErr     error

	mu        sync.Mutex
	sent      []string
	simulated []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: map[string]int64{testAccount: 41},
		sim: &network.SimulationResult{
			MinResourceFee:  1000,
			Usage:           network.ResourceUsage{CPUInstructions: 120000, ReadBytes: 2048, WriteBytes: 512},
			TransactionData: testTransactionData(1000),
		},
		estimateErr: network.ErrMethodNotFound,
		caps:        network.Capabilities{ProtocolVersion: 21, Features: []string{network.FeatureTransactionData}},
		send:        &network.BroadcastResult{Status: "PENDING"},
	}
}

func (f *fakeLedger) GetAccount(ctx context.Context, id string) (*network.Account, error) {
	seq, ok := f.accounts[id]
	if !ok {
		return nil, network.ErrAccountNotFound
	}
	return &network.Account{AccountID: id, Sequence: seq}, nil
}

func (f *fakeLedger) Simulate(ctx context.Context, envelope string) (*network.SimulationResult, error) {
	f.mu.Lock()
	f.simulated = append(f.simulated, envelope)
	f.mu.Unlock()
	return f.sim, f.simErr
}

func (f *fakeLedger) EstimateResourceFee(ctx context.Context, envelope string) (*network.CostEstimate, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeLedger) PrepareTransaction(ctx context.Context, envelope string) (string, error) {
	if f.prepare == nil {
		return "", network.ErrMethodNotFound
	}
	return f.prepare(envelope)
}

func (f *fakeLedger) SendTransaction(ctx context.Context, envelope string) (*network.BroadcastResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, envelope)
	f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	res := *f.send
	return &res, nil
}

func (f *fakeLedger) GetTransaction(ctx context.Context, hash string) (*network.LedgerTransaction, error) {
	return &network.LedgerTransaction{}, nil
}

func (f *fakeLedger) Capabilities(ctx context.Context) (network.Capabilities, error) {
	return f.caps, f.capsErr
}

// agentFunc adapts a function into a wallet.Agent.
type agentFunc func(ctx context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error)

func (f agentFunc) SignEnvelope(ctx context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error) {
	return f(ctx, envelope, opts)
}

// cooperativeAgent signs every envelope with testSigner.
func cooperativeAgent() wallet.Agent {
	return agentFunc(func(ctx context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error) {
		env, err := soroban.DecodeEnvelope(envelope)
		if err != nil {
			return wallet.Response{}, err
		}
		if err := env.Sign(opts.NetworkPassphrase, testSigner); err != nil {
			return wallet.Response{}, err
		}
		signed, err := env.Encode()
		if err != nil {
			return wallet.Response{}, err
		}
		return wallet.SignedTxResponse(signed), nil
	})
}

// failingAgent returns err as the agent's own failure.
func failingAgent(err error) wallet.Agent {
	return agentFunc(func(ctx context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error) {
		return wallet.Response{}, err
	})
}

// failingWriter rejects every history write.
type failingWriter struct {
	creates, updates int
}

func (w *failingWriter) Create(ctx context.Context, r *history.Record) (string, error) {
	w.creates++
	return "", errors.New("history store unavailable")
}

func (w *failingWriter) Update(ctx context.Context, id string, p *history.Patch) error {
	w.updates++
	return errors.New("history store unavailable")
}

// recordingWriter forwards to a memory store and keeps the patch sequence.
type recordingWriter struct {
	StoreWriter
	mu      sync.Mutex
	patches []history.Patch
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{StoreWriter: StoreWriter{Store: history.NewMemoryStore()}}
}

func (w *recordingWriter) Update(ctx context.Context, id string, p *history.Patch) error {
	w.mu.Lock()
	w.patches = append(w.patches, *p)
	w.mu.Unlock()
	return w.StoreWriter.Update(ctx, id, p)
}

func (w *recordingWriter) only(ctx context.Context) (*history.Record, error) {
	records, err := w.Store.List(ctx, history.ListOptions{})
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, errors.New("expected exactly one record")
	}
	return records[0], nil
}

// scriptedSource replays status responses; the last one repeats.
type scriptedSource struct {
	mu        sync.Mutex
	responses []*history.StatusReport
	errs      []error
	calls     int
}

func (s *scriptedSource) Status(ctx context.Context, id string) (*history.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// slowSource answers the first fast checks with a pending status, then takes delay per check.
type slowSource struct {
	fast     int
	delay    time.Duration
	honorCtx bool

	mu    sync.Mutex
	calls int
}

func (s *slowSource) Status(ctx context.Context, id string) (*history.StatusReport, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	if i >= s.fast {
		if s.honorCtx {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			time.Sleep(s.delay)
		}
	}
	return &history.StatusReport{Status: "submitted", TxHash: "abc", OnchainStatus: "pending"}, nil
}
