package memory

import (
	"context"
	"sync"
	"time"

	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/storage"
)

// MappingStore is an in-memory implementation of storage.MappingStore.
type MappingStore struct {
	mu   sync.RWMutex
	data map[int]*storage.MappingRecord
}

// NewMappingStore creates a new in-memory mapping store.
func NewMappingStore() *MappingStore {
	return &MappingStore{
		data: make(map[int]*storage.MappingRecord),
	}
}

// Upsert saves one slot's configuration, replacing any previous one.
func (s *MappingStore) Upsert(_ context.Context, rec *storage.MappingRecord) error {
	if rec == nil || rec.Index < 0 || rec.Index >= domain.MaxEntries {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	recCopy.UpdatedAt = time.Now().UTC()
	s.data[rec.Index] = &recCopy
	return nil
}

// Get retrieves one slot's configuration.
func (s *MappingStore) Get(_ context.Context, index int) (*storage.MappingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[index]
	if !ok {
		return nil, storage.ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

// LoadAll hydrates an in-memory mapping table from every persisted slot.
func (s *MappingStore) LoadAll(_ context.Context) (*domain.OracleMappings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappings := &domain.OracleMappings{}
	for index, rec := range s.data {
		mappings.Entries[index] = domain.MappingEntry{
			PriceAccount: rec.PriceAccount,
			Kind:         rec.Kind,
			TwapSource:   rec.TwapSource,
			Generic:      rec.Generic,
		}
	}
	return mappings, nil
}

var _ storage.MappingStore = (*MappingStore)(nil)
