// internal/history/bolt.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketRecords = []byte("transactions")
	bucketMeta    = []byte("meta")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore creates a new BoltDB-backed store.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Create creates a new record.
func (s *BoltStore) Create(ctx context.Context, r *Record) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("transactions bucket not found")
		}

		prepareCreate(r, s.now())

		key := []byte(r.ID)
		if b.Get(key) != nil {
			return &AlreadyExistsError{ID: r.ID}
		}

		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Get retrieves a record by id.
func (s *BoltStore) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.db.View(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketRecords)
		if b == nil {
			return &NotFoundError{ID: id}
		}

		data := b.Get([]byte(id))
		if data == nil {
			return &NotFoundError{ID: id}
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Update applies a patch inside a single write transaction.
func (s *BoltStore) Update(ctx context.Context, id string, p *Patch) (*Record, error) {
	var r Record
	err := s.db.Update(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketRecords)
		if b == nil {
			return &NotFoundError{ID: id}
		}

		key := []byte(id)
		data := b.Get(key)
		if data == nil {
			return &NotFoundError{ID: id}
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		if err := r.Apply(p, s.now()); err != nil {
			return err
		}

		updated, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List lists records with optional filtering, newest first.
func (s *BoltStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var records []*Record

	err := s.db.View(func(btx *bolt.Tx) error {
		b := btx.Bucket(bucketRecords)
		if b == nil {
			return nil // No bucket = no records
		}

		return b.ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if opts.matches(&r) {
				records = append(records, &r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(records)
	return limit(records, opts.Limit), nil
}
