package postgres

import (
	"context"
	"fmt"

	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/storage"
)

// MappingStore implements storage.MappingStore using PostgreSQL.
type MappingStore struct {
	pool *Pool
}

// NewMappingStore creates a new MappingStore.
func NewMappingStore(pool *Pool) *MappingStore {
	return &MappingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MappingStore = (*MappingStore)(nil)

// Schema creates the mapping table if it does not exist.
const Schema = `
	CREATE TABLE IF NOT EXISTS oracle_mappings (
		slot_index    INTEGER PRIMARY KEY,
		kind          SMALLINT NOT NULL,
		price_account BYTEA NOT NULL,
		twap_source   INTEGER NOT NULL DEFAULT 0,
		generic       BYTEA NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// EnsureSchema creates the mapping table if needed.
func (s *MappingStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure mapping schema: %w", err)
	}
	return nil
}

// Upsert saves one slot's configuration, replacing any previous one.
func (s *MappingStore) Upsert(ctx context.Context, rec *storage.MappingRecord) error {
	if rec == nil || rec.Index < 0 || rec.Index >= domain.MaxEntries {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO oracle_mappings (slot_index, kind, price_account, twap_source, generic, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (slot_index) DO UPDATE SET
			kind = EXCLUDED.kind,
			price_account = EXCLUDED.price_account,
			twap_source = EXCLUDED.twap_source,
			generic = EXCLUDED.generic,
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		rec.Index,
		int16(rec.Kind),
		rec.PriceAccount[:],
		int32(rec.TwapSource),
		rec.Generic[:],
	)
	if err != nil {
		return fmt.Errorf("upsert mapping slot: %w", err)
	}
	return nil
}

// Get retrieves one slot's configuration. Returns ErrNotFound if the slot
// was never administered.
func (s *MappingStore) Get(ctx context.Context, index int) (*storage.MappingRecord, error) {
	query := `
		SELECT slot_index, kind, price_account, twap_source, generic, updated_at
		FROM oracle_mappings
		WHERE slot_index = $1
	`

	row := s.pool.QueryRow(ctx, query, index)

	var (
		rec          storage.MappingRecord
		kind         int16
		twapSource   int32
		priceAccount []byte
		generic      []byte
	)
	err := row.Scan(&rec.Index, &kind, &priceAccount, &twapSource, &generic, &rec.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mapping slot: %w", err)
	}

	rec.Kind = uint8(kind)
	rec.TwapSource = uint16(twapSource)
	copy(rec.PriceAccount[:], priceAccount)
	copy(rec.Generic[:], generic)
	return &rec, nil
}

// LoadAll hydrates the in-memory mapping table from every persisted slot.
func (s *MappingStore) LoadAll(ctx context.Context) (*domain.OracleMappings, error) {
	query := `
		SELECT slot_index, kind, price_account, twap_source, generic
		FROM oracle_mappings
		ORDER BY slot_index ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	defer rows.Close()

	mappings := &domain.OracleMappings{}
	for rows.Next() {
		var (
			index        int
			kind         int16
			twapSource   int32
			priceAccount []byte
			generic      []byte
		)
		if err := rows.Scan(&index, &kind, &priceAccount, &twapSource, &generic); err != nil {
			return nil, fmt.Errorf("scan mapping slot: %w", err)
		}
		if index < 0 || index >= domain.MaxEntries {
			return nil, fmt.Errorf("%w: slot index %d", storage.ErrInvalidInput, index)
		}

		entry := domain.MappingEntry{
			Kind:       uint8(kind),
			TwapSource: uint16(twapSource),
		}
		copy(entry.PriceAccount[:], priceAccount)
		copy(entry.Generic[:], generic)
		mappings.Entries[index] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return mappings, nil
}
