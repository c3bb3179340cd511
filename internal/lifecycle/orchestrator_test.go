// internal/lifecycle/orchestrator_test.go
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
	"github.com/altuslabsxyz/rentflow/internal/wallet"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

func dialer(ledger *fakeLedger) Dialer {
	return func(preset network.Preset) (LedgerClient, error) {
		return ledger, nil
	}
}

func newTestOrchestrator(ledger *fakeLedger, agent wallet.Agent, writer HistoryWriter, m *metrics.Metrics) *Orchestrator {
	return New(Config{}, dialer(ledger), agent, writer, m)
}

func TestExecute_UserRejected(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	writer := newRecordingWriter()
	m := metrics.New()
	orig := errors.New("User rejected")

	o := newTestOrchestrator(ledger, failingAgent(orig), writer, m)
	res, err := o.Execute(ctx, testRequest(), ExecuteOptions{})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, orig))
	assert.True(t, IsSigningCancelled(err))

	rec, err := writer.only(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.StatusCancelled, rec.Status)
	assert.Contains(t, strings.ToLower(rec.ErrorMessage), "rejected")
	assert.NotEmpty(t, rec.UnsignedEnvelope)
	assert.Equal(t, int64(1100), rec.FeeUnits)
	assert.Empty(t, ledger.sent)

	require.Len(t, writer.patches, 1)
	assert.Equal(t, history.StatusCancelled, *writer.patches[0].Status)
	assert.Equal(t, 1.0, executionCount(t, m, OutcomeCancelled))
}

// executionCount reads the executions counter for outcome from the registry.
func executionCount(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "rentflow_executions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestExecute_PendingWithoutID(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	writer := newRecordingWriter()

	o := newTestOrchestrator(ledger, cooperativeAgent(), writer, nil)
	res, err := o.Execute(ctx, testRequest(), ExecuteOptions{
		Metadata: json.RawMessage(`{"gas_source":"wallet","created_by":"tenant"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.TransactionID)
	assert.Equal(t, "PENDING", res.SubmissionStatus)

	require.Len(t, ledger.sent, 1)
	want, err := soroban.TransactionID(ledger.sent[0], testPassphrase)
	require.NoError(t, err)
	assert.Equal(t, want, res.TransactionID)

	rec, err := writer.only(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RecordID, rec.ID)
	assert.Equal(t, history.StatusSubmitted, rec.Status)
	assert.Equal(t, res.TransactionID, rec.TransactionID)
	assert.Equal(t, ledger.sent[0], rec.SignedEnvelope)
	assert.Equal(t, testAccount, rec.WalletAddress)
	assert.Equal(t, "testnet", rec.Network)
	assert.JSONEq(t, `{"gas_source":"wallet","created_by":"tenant"}`, string(rec.Metadata))

	require.Len(t, writer.patches, 2)
	assert.Equal(t, history.StatusSigned, *writer.patches[0].Status)
	assert.Equal(t, history.StatusSubmitted, *writer.patches[1].Status)
}

func TestExecute_SubmissionFailure(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.sendErr = errors.New("503 service unavailable")
	writer := newRecordingWriter()

	o := newTestOrchestrator(ledger, cooperativeAgent(), writer, nil)
	_, err := o.Execute(ctx, testRequest(), ExecuteOptions{})

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))

	rec, err := writer.only(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "503")
	assert.NotEmpty(t, rec.SignedEnvelope)
	assert.Len(t, ledger.sent, 1)
}

func TestExecute_RejectionEnvelopeRecorded(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.send = &network.BroadcastResult{Hash: "deadbeef", Status: "ERROR", RejectionEnvelope: "AAAA"}
	writer := newRecordingWriter()

	o := newTestOrchestrator(ledger, cooperativeAgent(), writer, nil)
	res, err := o.Execute(ctx, testRequest(), ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.TransactionID)
	assert.Equal(t, "AAAA", res.RejectionEnvelope)

	rec, err := writer.only(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSubmitted, rec.Status)
	assert.Equal(t, "AAAA", rec.RejectionEnvelope)
}

func TestExecute_SigningFailed(t *testing.T) {
	ctx := context.Background()
	writer := newRecordingWriter()
	agent := agentFunc(func(ctx context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error) {
		return wallet.ErrorResponse("invalid transaction format"), nil
	})

	o := newTestOrchestrator(newFakeLedger(), agent, writer, nil)
	_, err := o.Execute(ctx, testRequest(), ExecuteOptions{})

	var failed *SigningFailedError
	require.True(t, errors.As(err, &failed))

	rec, err := writer.only(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "invalid transaction format")
}

func TestExecute_BuildErrorCreatesNoRecord(t *testing.T) {
	ctx := context.Background()
	writer := newRecordingWriter()
	req := testRequest()
	req.SourceAccount = "GUNKNOWN"

	o := newTestOrchestrator(newFakeLedger(), cooperativeAgent(), writer, nil)
	_, err := o.Execute(ctx, req, ExecuteOptions{})
	assert.True(t, errors.Is(err, network.ErrAccountNotFound))

	records, err := writer.Store.List(ctx, history.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecute_UnknownNetwork(t *testing.T) {
	req := testRequest()
	req.Network = "nowhere"

	o := newTestOrchestrator(newFakeLedger(), cooperativeAgent(), newRecordingWriter(), nil)
	_, err := o.Execute(context.Background(), req, ExecuteOptions{})
	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, StageResolve, buildErr.Stage)
}

func TestExecute_PersistenceFailureIsInvisible(t *testing.T) {
	ledger := newFakeLedger()
	writer := &failingWriter{}
	m := metrics.New()

	o := newTestOrchestrator(ledger, cooperativeAgent(), writer, m)
	res, err := o.Execute(context.Background(), testRequest(), ExecuteOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransactionID)
	assert.Empty(t, res.RecordID)
	assert.Len(t, ledger.sent, 1)
	assert.Equal(t, 1, writer.creates)
	assert.Equal(t, 0, writer.updates)
}

func TestExecute_PersistenceFailureKeepsOriginalError(t *testing.T) {
	orig := errors.New("Request denied by wallet")
	o := newTestOrchestrator(newFakeLedger(), failingAgent(orig), &failingWriter{}, nil)

	_, err := o.Execute(context.Background(), testRequest(), ExecuteOptions{})
	assert.True(t, errors.Is(err, orig))
	assert.True(t, IsSigningCancelled(err))
}

func TestExecute_FeeBufferFromConfig(t *testing.T) {
	ctx := context.Background()
	writer := newRecordingWriter()
	o := New(Config{FeeBuffer: math.LegacyNewDecWithPrec(12, 1)}, dialer(newFakeLedger()), cooperativeAgent(), writer, nil)

	res, err := o.Execute(ctx, testRequest(), ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1300), res.FeeUnits)
}

func TestExecute_CancelledContextStillRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	writer := newRecordingWriter()
	agent := agentFunc(func(c context.Context, envelope string, opts wallet.SignOptions) (wallet.Response, error) {
		cancel()
		return wallet.Response{}, c.Err()
	})

	o := newTestOrchestrator(newFakeLedger(), agent, writer, nil)
	_, err := o.Execute(ctx, testRequest(), ExecuteOptions{})
	require.Error(t, err)

	rec, lerr := writer.only(context.Background())
	require.NoError(t, lerr)
	assert.Equal(t, history.StatusCancelled, rec.Status)
}

func TestAttempt_TransitionIsForwardOnly(t *testing.T) {
	a := &attempt{id: "r1", status: history.StatusPendingSignature}

	p, err := a.transition(history.StatusSigned, nil)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSigned, *p.Status)

	_, err = a.transition(history.StatusPendingSignature, nil)
	assert.True(t, history.IsInvalidTransition(err))
	assert.Equal(t, history.StatusSigned, a.status)

	_, err = a.transition(history.StatusCancelled, nil)
	require.NoError(t, err)
	_, err = a.transition(history.StatusSubmitted, nil)
	assert.Error(t, err)
}

func TestExecute_EndToEndWithHistoryAPI(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	client, stop := startHistoryAPI(t, store)
	defer stop()

	m := metrics.New()
	o := newTestOrchestrator(newFakeLedger(), cooperativeAgent(), client, m)
	res, err := o.Execute(ctx, testRequest(), ExecuteOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, res.RecordID)

	rec, err := store.Get(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSubmitted, rec.Status)
	assert.Equal(t, res.TransactionID, rec.TransactionID)
	assert.Equal(t, 1.0, executionCount(t, m, OutcomeSubmitted))

	st, err := NewTracker(client, m).Check(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSubmitted, st.Status)
	assert.Equal(t, history.OnchainPending, st.OnchainStatus)
}
