package memory

import (
	"context"
	"sync"
	"time"

	"solana-price-oracle/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of
// storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data []*storage.PriceRecord
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{}
}

// Insert appends one resolved price.
func (s *PriceHistoryStore) Insert(_ context.Context, rec *storage.PriceRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	if recCopy.RecordedAt.IsZero() {
		recCopy.RecordedAt = time.Now().UTC()
	}
	s.data = append(s.data, &recCopy)
	return nil
}

// GetByIndex retrieves the most recent records for one slot, newest first.
func (s *PriceHistoryStore) GetByIndex(_ context.Context, index int, limit int) ([]*storage.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PriceRecord
	for i := len(s.data) - 1; i >= 0 && len(result) < limit; i-- {
		if s.data[i].Index == index {
			recCopy := *s.data[i]
			result = append(result, &recCopy)
		}
	}
	return result, nil
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
