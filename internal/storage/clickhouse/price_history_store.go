package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-price-oracle/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Schema creates the history table if it does not exist.
const Schema = `
	CREATE TABLE IF NOT EXISTS price_history (
		slot_index     UInt16,
		kind           UInt8,
		value          UInt64,
		exp            UInt64,
		updated_slot   UInt64,
		unix_timestamp UInt64,
		recorded_at    DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (slot_index, recorded_at)
`

// EnsureSchema creates the history table if needed.
func (s *PriceHistoryStore) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Insert appends one resolved price.
func (s *PriceHistoryStore) Insert(ctx context.Context, rec *storage.PriceRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO price_history (
			slot_index, kind, value, exp, updated_slot, unix_timestamp, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		uint16(rec.Index), rec.Kind, rec.Value, rec.Exp,
		rec.UpdatedSlot, rec.UnixTimestamp, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert price record: %w", err)
	}
	return nil
}

// GetByIndex retrieves the most recent records for one slot, newest first.
func (s *PriceHistoryStore) GetByIndex(ctx context.Context, index int, limit int) ([]*storage.PriceRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT slot_index, kind, value, exp, updated_slot, unix_timestamp, recorded_at
		FROM price_history
		WHERE slot_index = ?
		ORDER BY recorded_at DESC
		LIMIT ?
	`, uint16(index), uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("get price records: %w", err)
	}
	defer rows.Close()

	var result []*storage.PriceRecord
	for rows.Next() {
		var (
			rec       storage.PriceRecord
			slotIndex uint16
		)
		if err := rows.Scan(&slotIndex, &rec.Kind, &rec.Value, &rec.Exp,
			&rec.UpdatedSlot, &rec.UnixTimestamp, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan price record: %w", err)
		}
		rec.Index = int(slotIndex)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price records: %w", err)
	}
	return result, nil
}
