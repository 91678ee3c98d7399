package vault

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-memory vault driver used for development deployments
// without a database and for tests. Records do not survive restarts.
type Memory struct {
	mu        sync.RWMutex
	accessKey string
	records   map[string]*MaskedRecord
	byMasked  map[string][]string // masked text -> record ids, oldest first
}

// NewMemory creates an empty in-memory vault gated by the given access key.
func NewMemory(accessKey string) *Memory {
	return &Memory{
		accessKey: accessKey,
		records:   make(map[string]*MaskedRecord),
		byMasked:  make(map[string][]string),
	}
}

// Save stores a record. Identical content is idempotent.
func (m *Memory) Save(_ context.Context, rec *MaskedRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = RecordID(rec.MaskedText, rec.Entities)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return rec.ID, nil
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.records[cp.ID] = &cp
	m.byMasked[cp.MaskedText] = append(m.byMasked[cp.MaskedText], cp.ID)
	return cp.ID, nil
}

// Lookup returns the newest record matching the masked text exactly.
func (m *Memory) Lookup(_ context.Context, maskedText, accessKey string) (*MaskedRecord, error) {
	if err := checkKey(m.accessKey, accessKey); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byMasked[maskedText]
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	rec := *m.records[ids[len(ids)-1]]
	return &rec, nil
}

// LookupID returns the record with the given id, credential-gated.
func (m *Memory) LookupID(_ context.Context, id, accessKey string) (*MaskedRecord, error) {
	if err := checkKey(m.accessKey, accessKey); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Masked returns the redacted view of a record by id.
func (m *Memory) Masked(_ context.Context, id string) (*MaskedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Redacted(), nil
}

// SetCategory attaches a category to a stored record.
func (m *Memory) SetCategory(_ context.Context, id, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Category = category
	return nil
}

// Close is a no-op for the memory driver.
func (m *Memory) Close() error { return nil }

var _ Vault = (*Memory)(nil)
