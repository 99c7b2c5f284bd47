package storage

import (
	"context"
	"time"

	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/observability"
	"solana-price-oracle/internal/refresh"
)

// HistorySink adapts a PriceHistoryStore to the refresh archival interface.
type HistorySink struct {
	store PriceHistoryStore
}

// NewHistorySink creates a sink writing into the given store.
func NewHistorySink(store PriceHistoryStore) *HistorySink {
	return &HistorySink{store: store}
}

var _ refresh.HistorySink = (*HistorySink)(nil)

// Record archives one resolved price.
func (s *HistorySink) Record(ctx context.Context, index int, kind uint8, dp domain.DatedPrice) error {
	err := s.store.Insert(ctx, &PriceRecord{
		Index:         index,
		Kind:          kind,
		Value:         dp.Price.Value,
		Exp:           dp.Price.Exp,
		UpdatedSlot:   dp.LastUpdatedSlot,
		UnixTimestamp: dp.UnixTimestamp,
		RecordedAt:    time.Now().UTC(),
	})
	observability.RecordHistoryWrite(err)
	return err
}
