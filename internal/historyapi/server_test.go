// internal/historyapi/server_test.go
package historyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
	"github.com/altuslabsxyz/rentflow/pkg/network"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuerier struct {
	tx    *network.LedgerTransaction
	err   error
	calls int
}

func (f *fakeQuerier) GetTransaction(ctx context.Context, hash string) (*network.LedgerTransaction, error) {
	f.calls++
	return f.tx, f.err
}

func newTestServer(t *testing.T, queriers map[string]network.TxQuerier) (*Client, history.Store) {
	t.Helper()
	store := history.NewMemoryStore()
	srv, err := New(Config{Store: store, Queriers: queriers, Metrics: metrics.New()})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return client, store
}

func testRecord() *history.Record {
	return &history.Record{
		ContractID:       "CCON1",
		Method:           "deposit",
		WalletAddress:    "GACC1",
		Network:          "testnet",
		Status:           history.StatusPendingSignature,
		FeeUnits:         350,
		UnsignedEnvelope: "ZW52",
		Metadata:         json.RawMessage(`{"gas_source":"wallet","created_by":"tenant","nested":{"b":1,"a":2}}`),
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestServer_CreateAndGet(t *testing.T) {
	client, _ := newTestServer(t, nil)
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, history.StatusPendingSignature, got.Status)
	assert.Equal(t, int64(350), got.FeeUnits)
	assert.JSONEq(t, `{"gas_source":"wallet","created_by":"tenant","nested":{"b":1,"a":2}}`, string(got.Metadata))
}

func TestServer_CreateValidation(t *testing.T) {
	store := history.NewMemoryStore()
	srv, err := New(Config{Store: store})
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"missing contract", `{"method":"deposit","walletAddress":"G","network":"testnet"}`},
		{"unknown status", `{"contractId":"C","method":"m","walletAddress":"G","network":"testnet","status":"done"}`},
		{"array metadata", `{"contractId":"C","method":"m","walletAddress":"G","network":"testnet","metadata":[1]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_Update(t *testing.T) {
	client, _ := newTestServer(t, nil)
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)

	signed := history.StatusSigned
	env := "c2lnbmVk"
	require.NoError(t, client.Update(ctx, id, &history.Patch{Status: &signed, SignedEnvelope: &env}))

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSigned, got.Status)
	assert.Equal(t, env, got.SignedEnvelope)
	assert.Equal(t, "ZW52", got.UnsignedEnvelope)

	back := history.StatusPendingSignature
	err = client.Update(ctx, id, &history.Patch{Status: &back})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	bogus := history.Status("done")
	err = client.Update(ctx, id, &history.Patch{Status: &bogus})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestServer_NotFound(t *testing.T) {
	client, _ := newTestServer(t, nil)
	ctx := context.Background()

	_, err := client.Get(ctx, "missing")
	assert.True(t, history.IsNotFound(err))

	_, err = client.Status(ctx, "missing")
	assert.True(t, history.IsNotFound(err))

	failed := history.StatusFailed
	err = client.Update(ctx, "missing", &history.Patch{Status: &failed})
	assert.True(t, history.IsNotFound(err))
}

func TestServer_StatusWithoutQuerier(t *testing.T) {
	client, _ := newTestServer(t, nil)
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)

	st, err := client.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pending_signature", st.Status)
	assert.Equal(t, "not_submitted", st.OnchainStatus)
	assert.Empty(t, st.TxHash)
}

func TestServer_StatusResolvesOnchain(t *testing.T) {
	querier := &fakeQuerier{tx: &network.LedgerTransaction{Found: true, Successful: true, LedgerSequence: 4242}}
	client, store := newTestServer(t, map[string]network.TxQuerier{"testnet": querier})
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)
	submitted := history.StatusSubmitted
	hash := "abc123"
	require.NoError(t, client.Update(ctx, id, &history.Patch{Status: &submitted, TransactionID: &hash}))

	st, err := client.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "success", st.Status)
	assert.Equal(t, "success", st.OnchainStatus)
	assert.Equal(t, "abc123", st.TxHash)
	assert.Equal(t, int64(4242), st.Ledger)

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSuccess, stored.Status)
	assert.Equal(t, int64(4242), stored.Ledger)

	// Terminal records are not queried again.
	_, err = client.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, querier.calls)
}

func TestServer_StatusPendingOnLedgerMiss(t *testing.T) {
	querier := &fakeQuerier{tx: &network.LedgerTransaction{Found: false}}
	client, _ := newTestServer(t, map[string]network.TxQuerier{"testnet": querier})
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)
	submitted := history.StatusSubmitted
	hash := "abc123"
	require.NoError(t, client.Update(ctx, id, &history.Patch{Status: &submitted, TransactionID: &hash}))

	st, err := client.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "submitted", st.Status)
	assert.Equal(t, "pending", st.OnchainStatus)
}

func TestServer_StatusQueryErrorFallsBack(t *testing.T) {
	querier := &fakeQuerier{err: errors.New("rpc down")}
	client, _ := newTestServer(t, map[string]network.TxQuerier{"testnet": querier})
	ctx := context.Background()

	id, err := client.Create(ctx, testRecord())
	require.NoError(t, err)
	submitted := history.StatusSubmitted
	hash := "abc123"
	require.NoError(t, client.Update(ctx, id, &history.Patch{Status: &submitted, TransactionID: &hash}))

	st, err := client.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pending", st.OnchainStatus)
}

func TestServer_ListAndMetrics(t *testing.T) {
	store := history.NewMemoryStore()
	m := metrics.New()
	srv, err := New(Config{Store: store, Metrics: m})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client, err := NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	ctx := context.Background()

	for _, contract := range []string{"CCON1", "CCON2", "CCON1"} {
		r := testRecord()
		r.ContractID = contract
		_, err := client.Create(ctx, r)
		require.NoError(t, err)
	}

	records, err := client.List(ctx, history.ListOptions{ContractID: "CCON1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = client.List(ctx, history.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	resp, err := http.Get(ts.URL + "/transactions?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StatusInProcess(t *testing.T) {
	store := history.NewMemoryStore()
	querier := &fakeQuerier{tx: &network.LedgerTransaction{Found: true, Successful: true, LedgerSequence: 77}}
	srv, err := New(Config{Store: store, Queriers: map[string]network.TxQuerier{"testnet": querier}})
	require.NoError(t, err)

	ctx := context.Background()
	r := testRecord()
	r.Status = history.StatusSubmitted
	r.TransactionID = "abc"
	require.NoError(t, store.Create(ctx, r))

	resp, err := srv.Status(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "success", resp.OnchainStatus)
	assert.Equal(t, int64(77), resp.Ledger)

	_, err = srv.Status(ctx, "missing")
	assert.True(t, history.IsNotFound(err))
}
