// internal/history/sql.go
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// Dialect selects placeholder and locking syntax.
type Dialect string

// Supported SQL dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

const recordColumns = "id, contract_id, method, wallet_address, network, status, fee_units, cost_estimate, " +
	"unsigned_envelope, signed_envelope, transaction_id, rejection_envelope, error_message, onchain_status, " +
	"ledger, metadata, created_at, updated_at"

const createTableQuery = `
CREATE TABLE IF NOT EXISTS transaction_history (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	method TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	network TEXT NOT NULL,
	status TEXT NOT NULL,
	fee_units BIGINT NOT NULL DEFAULT 0,
	cost_estimate TEXT NOT NULL DEFAULT '',
	unsigned_envelope TEXT NOT NULL DEFAULT '',
	signed_envelope TEXT NOT NULL DEFAULT '',
	transaction_id TEXT NOT NULL DEFAULT '',
	rejection_envelope TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	onchain_status TEXT NOT NULL DEFAULT '',
	ledger BIGINT NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// SQLStore implements Store on PostgreSQL or SQLite.
// Timestamps are stored as unix nanoseconds so both dialects scan them identically.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQLStore opens a database for the dialect and prepares the schema.
func OpenSQLStore(dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	s, err := NewSQLStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and creates the history table if needed.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	s := &SQLStore{db: db, dialect: dialect, now: time.Now}
	if _, err := db.ExecContext(context.Background(), createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to migrate history table: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into the dialect's form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// Create inserts a new record.
func (s *SQLStore) Create(ctx context.Context, r *Record) error {
	prepareCreate(r, s.now())

	estimate, err := encodeEstimate(r.CostEstimate)
	if err != nil {
		return err
	}

	query := s.rebind("INSERT INTO transaction_history (" + recordColumns + ") " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.ContractID, r.Method, r.WalletAddress, r.Network, string(r.Status), r.FeeUnits, estimate,
		r.UnsignedEnvelope, r.SignedEnvelope, r.TransactionID, r.RejectionEnvelope, r.ErrorMessage,
		string(r.OnchainStatus), r.Ledger, string(r.Metadata), r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return &AlreadyExistsError{ID: r.ID}
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+recordColumns+" FROM transaction_history WHERE id = ?"), id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// Update applies a patch inside a transaction. PostgreSQL locks the row; SQLite serializes writers.
func (s *SQLStore) Update(ctx context.Context, id string, p *Patch) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := "SELECT " + recordColumns + " FROM transaction_history WHERE id = ?"
	if s.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	r, err := scanRecord(tx.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	if err := r.Apply(p, s.now()); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, s.rebind("UPDATE transaction_history SET status = ?, signed_envelope = ?, "+
		"transaction_id = ?, rejection_envelope = ?, error_message = ?, onchain_status = ?, ledger = ?, "+
		"updated_at = ? WHERE id = ?"),
		string(r.Status), r.SignedEnvelope, r.TransactionID, r.RejectionEnvelope, r.ErrorMessage,
		string(r.OnchainStatus), r.Ledger, r.UpdatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return r, nil
}

// List returns matching records, newest first.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if opts.ContractID != "" {
		where = append(where, "contract_id = ?")
		args = append(args, opts.ContractID)
	}
	if opts.WalletAddress != "" {
		where = append(where, "wallet_address = ?")
		args = append(args, opts.WalletAddress)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := "SELECT " + recordColumns + " FROM transaction_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r                    Record
		status, onchain      string
		estimate, metadata   string
		createdAt, updatedAt int64
	)
	err := row.Scan(&r.ID, &r.ContractID, &r.Method, &r.WalletAddress, &r.Network, &status, &r.FeeUnits,
		&estimate, &r.UnsignedEnvelope, &r.SignedEnvelope, &r.TransactionID, &r.RejectionEnvelope,
		&r.ErrorMessage, &onchain, &r.Ledger, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = Status(status)
	r.OnchainStatus = OnchainStatus(onchain)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if metadata != "" {
		r.Metadata = json.RawMessage(metadata)
	}
	if estimate != "" {
		var est network.CostEstimate
		if err := json.Unmarshal([]byte(estimate), &est); err != nil {
			return nil, fmt.Errorf("invalid cost estimate for record %q: %w", r.ID, err)
		}
		r.CostEstimate = &est
	}
	return &r, nil
}

func encodeEstimate(est *network.CostEstimate) (string, error) {
	if est == nil {
		return "", nil
	}
	data, err := json.Marshal(est)
	if err != nil {
		return "", fmt.Errorf("failed to encode cost estimate: %w", err)
	}
	return string(data), nil
}

// pgUniqueViolation is the postgres SQLSTATE for a unique constraint conflict.
const pgUniqueViolation = "23505"

// isUniqueViolation recognizes primary-key conflicts from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
