// Package storage defines the persistence boundary beneath the shared
// oracle stores: durable mapping administration records and the archival
// history of resolved prices. The dispatch core never touches this layer;
// it only sees the in-memory stores hydrated from here.
package storage

import (
	"context"
	"time"

	"solana-price-oracle/internal/domain"
)

// MappingRecord is one administered mapping slot as persisted.
type MappingRecord struct {
	Index        int
	Kind         uint8
	PriceAccount domain.PubKey
	TwapSource   uint16
	Generic      [domain.GenericDataSize]byte
	UpdatedAt    time.Time
}

// PriceRecord is one resolved price as archived.
type PriceRecord struct {
	Index         int
	Kind          uint8
	Value         uint64
	Exp           uint64
	UpdatedSlot   uint64
	UnixTimestamp uint64
	RecordedAt    time.Time
}

// MappingStore persists administered mapping slots.
type MappingStore interface {
	// Upsert saves one slot's configuration, replacing any previous one.
	Upsert(ctx context.Context, rec *MappingRecord) error

	// Get retrieves one slot's configuration. Returns ErrNotFound if the
	// slot was never administered.
	Get(ctx context.Context, index int) (*MappingRecord, error)

	// LoadAll hydrates the in-memory mapping table from every persisted
	// slot.
	LoadAll(ctx context.Context) (*domain.OracleMappings, error)
}

// PriceHistoryStore archives every resolved price, append only.
type PriceHistoryStore interface {
	// Insert appends one resolved price.
	Insert(ctx context.Context, rec *PriceRecord) error

	// GetByIndex retrieves the most recent records for one slot, newest
	// first, at most limit rows.
	GetByIndex(ctx context.Context, index int, limit int) ([]*PriceRecord, error)
}
