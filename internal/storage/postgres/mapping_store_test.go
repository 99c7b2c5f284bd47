package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/storage"
)

func TestMappingStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMappingStore(pool)

	rec := &storage.MappingRecord{
		Index:        3,
		Kind:         2,
		PriceAccount: domain.PubKey{7, 7, 7},
		TwapSource:   0,
		Generic:      [domain.GenericDataSize]byte{1, 2, 3},
	}
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, rec.Index, got.Index)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.PriceAccount, got.PriceAccount)
	assert.Equal(t, rec.Generic, got.Generic)
	assert.False(t, got.UpdatedAt.IsZero(), "updated_at should be stamped")
}

func TestMappingStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMappingStore(pool)

	rec := &storage.MappingRecord{Index: 0, Kind: 23}
	require.NoError(t, store.Upsert(ctx, rec))

	rec.Kind = 12
	rec.TwapSource = 7
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(12), got.Kind)
	assert.Equal(t, uint16(7), got.TwapSource)
}

func TestMappingStore_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMappingStore(pool)
	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMappingStore_UpsertRejectsBadIndex(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMappingStore(pool)
	for _, rec := range []*storage.MappingRecord{nil, {Index: -1}, {Index: domain.MaxEntries}} {
		assert.ErrorIs(t, store.Upsert(context.Background(), rec), storage.ErrInvalidInput)
	}
}

func TestMappingStore_LoadAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMappingStore(pool)

	require.NoError(t, store.Upsert(ctx, &storage.MappingRecord{Index: 0, Kind: 23, Generic: [domain.GenericDataSize]byte{9}}))
	require.NoError(t, store.Upsert(ctx, &storage.MappingRecord{Index: 511, Kind: 2, PriceAccount: domain.PubKey{1}}))

	mappings, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(23), mappings.Entries[0].Kind)
	assert.Equal(t, uint8(2), mappings.Entries[511].Kind)
	assert.Equal(t, domain.PubKey{1}, mappings.Entries[511].PriceAccount)
	assert.False(t, mappings.Entries[1].IsConfigured(), "unadministered slots stay unconfigured")
}
