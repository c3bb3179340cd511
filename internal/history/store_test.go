// internal/history/store_test.go
package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// storeFactories returns every Store implementation that runs without external services.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"bolt": func(t *testing.T) Store {
			s, err := NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLStore(DialectSQLite, filepath.Join(t.TempDir(), "history.sqlite"))
			require.NoError(t, err)
			return s
		},
	}
}

func newTestRecord(contract string) *Record {
	return &Record{
		ContractID:       contract,
		Method:           "deposit",
		WalletAddress:    "GACC1",
		Network:          "testnet",
		FeeUnits:         350,
		CostEstimate:     &network.CostEstimate{FeeUnits: 250, Provenance: network.ProvenanceSimulation, CPUInstructions: 1000},
		UnsignedEnvelope: "ZW52ZWxvcGU=",
		Metadata:         json.RawMessage(`{"created_by":"tenant","gas_source":"wallet"}`),
	}
}

func TestStore_CreateGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			r := newTestRecord("CCON1")
			require.NoError(t, s.Create(ctx, r))
			require.NotEmpty(t, r.ID)
			assert.Equal(t, StatusPendingSignature, r.Status)

			got, err := s.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, "CCON1", got.ContractID)
			assert.Equal(t, int64(350), got.FeeUnits)
			require.NotNil(t, got.CostEstimate)
			assert.Equal(t, network.ProvenanceSimulation, got.CostEstimate.Provenance)
			assert.JSONEq(t, `{"created_by":"tenant","gas_source":"wallet"}`, string(got.Metadata))
		})
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			r := newTestRecord("CCON1")
			r.ID = "fixed-id"
			require.NoError(t, s.Create(ctx, r))

			dup := newTestRecord("CCON1")
			dup.ID = "fixed-id"
			err := s.Create(ctx, dup)
			assert.True(t, IsAlreadyExists(err), "expected AlreadyExists, got %v", err)
		})
	}
}

func TestStore_GetNotFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()

			_, err := s.Get(context.Background(), "missing")
			assert.True(t, IsNotFound(err), "expected NotFound, got %v", err)
		})
	}
}

func TestStore_UpdateForwardOnly(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			r := newTestRecord("CCON1")
			require.NoError(t, s.Create(ctx, r))

			signed := StatusSigned
			env := "c2lnbmVk"
			got, err := s.Update(ctx, r.ID, &Patch{Status: &signed, SignedEnvelope: &env})
			require.NoError(t, err)
			assert.Equal(t, StatusSigned, got.Status)
			assert.Equal(t, env, got.SignedEnvelope)

			back := StatusPendingSignature
			_, err = s.Update(ctx, r.ID, &Patch{Status: &back})
			assert.True(t, IsInvalidTransition(err), "expected invalid transition, got %v", err)

			stored, err := s.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusSigned, stored.Status)
			assert.Equal(t, "ZW52ZWxvcGU=", stored.UnsignedEnvelope)
		})
	}
}

func TestStore_UpdateNotFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()

			failed := StatusFailed
			_, err := s.Update(context.Background(), "missing", &Patch{Status: &failed})
			assert.True(t, IsNotFound(err), "expected NotFound, got %v", err)
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, contract := range []string{"CCON1", "CCON2", "CCON1"} {
				r := newTestRecord(contract)
				r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, s.Create(ctx, r))
			}

			all, err := s.List(ctx, ListOptions{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
			assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))

			filtered, err := s.List(ctx, ListOptions{ContractID: "CCON1"})
			require.NoError(t, err)
			assert.Len(t, filtered, 2)

			limited, err := s.List(ctx, ListOptions{Limit: 1})
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "CCON1", limited[0].ContractID)

			byStatus, err := s.List(ctx, ListOptions{Status: StatusSuccess})
			require.NoError(t, err)
			assert.Empty(t, byStatus)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := newTestRecord("CCON1")
	require.NoError(t, s.Create(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	got.Status = StatusSuccess
	got.CostEstimate.FeeUnits = 1

	again, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingSignature, again.Status)
	assert.Equal(t, int64(250), again.CostEstimate.FeeUnits)
}
