package ledger

import (
	"context"
	"sync"

	"cpq-engine-api/internal/model"
)

// memStore is an in-memory Store used only by this package's tests.
type memStore struct {
	mu      sync.Mutex
	entries map[model.QuoteId][]model.LedgerEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[model.QuoteId][]model.LedgerEntry)}
}

func (m *memStore) InsertIfVersionAbsent(ctx context.Context, entry model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[entry.QuoteId] {
		if e.Version == entry.Version {
			return ErrVersionConflict
		}
	}
	m.entries[entry.QuoteId] = append(m.entries[entry.QuoteId], entry)
	return nil
}

func (m *memStore) FetchByVersion(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[quoteId] {
		if e.Version == version {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[quoteId]
	if len(entries) == 0 {
		return nil, ErrNoSuchEntry
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Version > latest.Version {
			latest = e
		}
	}
	cp := latest
	return &cp, nil
}

func (m *memStore) FetchAllOrdered(ctx context.Context, quoteId model.QuoteId) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LedgerEntry, len(m.entries[quoteId]))
	copy(out, m.entries[quoteId])
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Version < out[i].Version {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// mutateEntry overwrites the stored entry at (quoteId, version), used only
// to simulate external tampering in tests.
func (m *memStore) mutateEntry(quoteId model.QuoteId, version int, mutate func(*model.LedgerEntry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries[quoteId] {
		if m.entries[quoteId][i].Version == version {
			mutate(&m.entries[quoteId][i])
		}
	}
}
