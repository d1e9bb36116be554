package quotestore

import (
	"context"

	"cpq-engine-api/internal/model"
)

// memStore is an in-memory Store used only by tests in this package.
type memStore struct {
	heads    map[model.QuoteId]model.Quote
	versions map[model.QuoteId]map[int]model.Quote
}

func newMemStore() *memStore {
	return &memStore{
		heads:    make(map[model.QuoteId]model.Quote),
		versions: make(map[model.QuoteId]map[int]model.Quote),
	}
}

func (s *memStore) Save(ctx context.Context, quote model.Quote, expectedVersion int) error {
	head, exists := s.heads[quote.ID]
	currentVersion := 0
	if exists {
		currentVersion = head.Version
	}
	if currentVersion != expectedVersion {
		return ErrVersionConflict
	}

	s.heads[quote.ID] = quote
	if s.versions[quote.ID] == nil {
		s.versions[quote.ID] = make(map[int]model.Quote)
	}
	s.versions[quote.ID][quote.Version] = quote
	return nil
}

func (s *memStore) Head(ctx context.Context, quoteId model.QuoteId) (model.Quote, error) {
	q, ok := s.heads[quoteId]
	if !ok {
		return model.Quote{}, ErrNotFound
	}
	return q, nil
}

func (s *memStore) AtVersion(ctx context.Context, quoteId model.QuoteId, version int) (model.Quote, error) {
	byVersion, ok := s.versions[quoteId]
	if !ok {
		return model.Quote{}, ErrNotFound
	}
	q, ok := byVersion[version]
	if !ok {
		return model.Quote{}, ErrNotFound
	}
	return q, nil
}
