// internal/history/memory.go
package history

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Create stores a copy of r.
func (m *MemoryStore) Create(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareCreate(r, m.now())
	if _, ok := m.records[r.ID]; ok {
		return &AlreadyExistsError{ID: r.ID}
	}
	m.records[r.ID] = cloneRecord(r)
	return nil
}

// Get returns a copy of the record.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return cloneRecord(r), nil
}

// Update applies p to the stored record.
func (m *MemoryStore) Update(ctx context.Context, id string, p *Patch) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	updated := cloneRecord(r)
	if err := updated.Apply(p, m.now()); err != nil {
		return nil, err
	}
	m.records[id] = updated
	return cloneRecord(updated), nil
}

// List returns matching records, newest first.
func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, r := range m.records {
		if opts.matches(r) {
			out = append(out, cloneRecord(r))
		}
	}
	sortNewestFirst(out)
	return limit(out, opts.Limit), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// prepareCreate fills defaults on a record about to be created.
func prepareCreate(r *Record, now time.Time) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Status == "" {
		r.Status = StatusPendingSignature
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// cloneRecord deep-copies the mutable parts of a record.
func cloneRecord(r *Record) *Record {
	c := *r
	if r.CostEstimate != nil {
		est := *r.CostEstimate
		c.CostEstimate = &est
	}
	if r.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), r.Metadata...)
	}
	return &c
}

func sortNewestFirst(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func limit(records []*Record, n int) []*Record {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
