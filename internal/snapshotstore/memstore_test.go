package snapshotstore

import (
	"context"
	"sync"

	"cpq-engine-api/internal/model"
)

type memStore struct {
	mu        sync.Mutex
	snapshots map[model.QuoteId]map[int]model.PricingSnapshot
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[model.QuoteId]map[int]model.PricingSnapshot)}
}

func (m *memStore) Insert(ctx context.Context, snapshot model.PricingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[snapshot.QuoteId] == nil {
		m.snapshots[snapshot.QuoteId] = make(map[int]model.PricingSnapshot)
	}
	m.snapshots[snapshot.QuoteId][snapshot.QuoteVersion] = snapshot
	return nil
}

func (m *memStore) Get(ctx context.Context, quoteId model.QuoteId, version int) (*model.PricingSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[quoteId][version]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memStore) LatestFor(ctx context.Context, quoteId model.QuoteId) (*model.PricingSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.PricingSnapshot
	for v, snap := range m.snapshots[quoteId] {
		if latest == nil || v > latest.QuoteVersion {
			cp := snap
			latest = &cp
		}
	}
	return latest, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries map[model.QuoteId]map[int]model.LedgerEntry
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[model.QuoteId]map[int]model.LedgerEntry)}
}

func (l *memLedger) put(entry model.LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[entry.QuoteId] == nil {
		l.entries[entry.QuoteId] = make(map[int]model.LedgerEntry)
	}
	l.entries[entry.QuoteId][entry.Version] = entry
}

func (l *memLedger) Append(ctx context.Context, quoteId model.QuoteId, action model.LedgerAction, snapshot model.CanonicalSnapshot, actor string) (model.LedgerEntry, error) {
	return model.LedgerEntry{}, nil
}

func (l *memLedger) Fetch(ctx context.Context, quoteId model.QuoteId, version int) (*model.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[quoteId][version]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (l *memLedger) FetchLatest(ctx context.Context, quoteId model.QuoteId) (*model.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var latest *model.LedgerEntry
	for v, entry := range l.entries[quoteId] {
		if latest == nil || v > latest.Version {
			cp := entry
			latest = &cp
		}
	}
	return latest, nil
}

func (l *memLedger) VerifyChain(ctx context.Context, quoteId model.QuoteId) (model.ChainVerification, error) {
	return model.ChainVerification{}, nil
}
