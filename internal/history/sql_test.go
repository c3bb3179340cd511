// internal/history/sql_test.go
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = []string{
	"id", "contract_id", "method", "wallet_address", "network", "status", "fee_units", "cost_estimate",
	"unsigned_envelope", "signed_envelope", "transaction_id", "rejection_envelope", "error_message",
	"onchain_status", "ledger", "metadata", "created_at", "updated_at",
}

func newMockPostgresStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS transaction_history")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewSQLStore(db, DialectPostgres)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	t.Cleanup(func() { _ = db.Close() })
	return s, mock
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestNewSQLStore_UnsupportedDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, Dialect("oracle"))
	assert.Error(t, err)
}

func TestSQLStore_PostgresGet(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Unix(1700000000, 0).UTC()

	rows := sqlmock.NewRows(testColumns).AddRow(
		"rec-1", "CCON1", "deposit", "GACC1", "testnet", "submitted", 350,
		`{"feeUnits":250,"provenance":"dedicated-estimation"}`,
		"dW5zaWduZWQ=", "c2lnbmVk", "abc123", "", "", "", 0,
		`{"gas_source":"wallet"}`, created.UnixNano(), created.UnixNano(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_history WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnRows(rows)

	r, err := s.Get(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, r.Status)
	assert.Equal(t, "abc123", r.TransactionID)
	require.NotNil(t, r.CostEstimate)
	assert.Equal(t, int64(250), r.CostEstimate.FeeUnits)
	assert.JSONEq(t, `{"gas_source":"wallet"}`, string(r.Metadata))
	assert.Equal(t, created, r.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresGetNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_history WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresCreate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_history")).
		WithArgs("rec-1", "CCON1", "deposit", "GACC1", "testnet", "pending_signature", int64(350),
			sqlmock.AnyArg(), "ZW52ZWxvcGU=", "", "", "", "", "", int64(0), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := newTestRecord("CCON1")
	r.ID = "rec-1"
	require.NoError(t, s.Create(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresCreateDuplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_history")).
		WillReturnError(assert.AnError)
	r := newTestRecord("CCON1")
	r.ID = "rec-1"
	err := s.Create(context.Background(), r)
	require.Error(t, err)
	assert.False(t, IsAlreadyExists(err))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_history")).
		WillReturnError(errDuplicateKey)
	err = s.Create(context.Background(), r)
	assert.True(t, IsAlreadyExists(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var errDuplicateKey = &pq.Error{
	Code:       pgUniqueViolation,
	Message:    `duplicate key value violates unique constraint "transaction_history_pkey"`,
	Constraint: "transaction_history_pkey",
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique violation", errDuplicateKey, true},
		{"wrapped postgres unique violation", fmt.Errorf("insert: %w", errDuplicateKey), true},
		{"postgres foreign key violation", &pq.Error{Code: "23503", Message: "violates unique-looking constraint"}, false},
		{"text mentioning unique", errors.New("column unique_tag: duplicate key in cache"), false},
		{"unrelated", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestSQLStore_PostgresUpdateLocksRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Unix(1690000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_history WHERE id = $1 FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(testColumns).AddRow(
			"rec-1", "CCON1", "deposit", "GACC1", "testnet", "signed", 350, "",
			"dW5zaWduZWQ=", "c2lnbmVk", "", "", "", "", 0, "", created.UnixNano(), created.UnixNano(),
		))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transaction_history SET status = $1")).
		WithArgs("submitted", "c2lnbmVk", "abc123", "", "", "", int64(0), s.now().UnixNano(), "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submitted := StatusSubmitted
	txID := "abc123"
	r, err := s.Update(context.Background(), "rec-1", &Patch{Status: &submitted, TransactionID: &txID})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, r.Status)
	assert.Equal(t, "abc123", r.TransactionID)
	assert.Nil(t, r.CostEstimate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresUpdateRejectsRegression(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Unix(1690000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(testColumns).AddRow(
			"rec-1", "CCON1", "deposit", "GACC1", "testnet", "success", 350, "",
			"", "", "abc", "", "", "success", 42, "", created.UnixNano(), created.UnixNano(),
		))
	mock.ExpectRollback()

	failed := StatusFailed
	_, err := s.Update(context.Background(), "rec-1", &Patch{Status: &failed})
	assert.True(t, IsInvalidTransition(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresListFilters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM transaction_history WHERE contract_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("CCON1", "submitted", 5).
		WillReturnRows(sqlmock.NewRows(testColumns).AddRow(
			"rec-1", "CCON1", "deposit", "GACC1", "testnet", "submitted", 350, "",
			"", "", "abc", "", "", "", 0, "", created.UnixNano(), created.UnixNano(),
		))

	records, err := s.List(context.Background(), ListOptions{ContractID: "CCON1", Status: StatusSubmitted, Limit: 5})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
