package lp

import (
	"encoding/binary"
	"errors"
	"testing"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

type testCustody struct {
	mint      domain.PubKey
	feedKey   domain.PubKey
	reserve   uint64
	decimals  byte
	priceSlot uint16
}

// poolAccount builds a perp pool account snapshot.
func poolAccount(supply uint64, reported domain.Price, slot, ts uint64, storeKey domain.PubKey, lpDecimals byte, custodies []testCustody) *accounts.Account {
	data := make([]byte, poolHeaderLen+len(custodies)*custodySize)
	copy(data[0:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], supply)
	binary.LittleEndian.PutUint64(data[16:24], reported.Value)
	binary.LittleEndian.PutUint64(data[24:32], reported.Exp)
	binary.LittleEndian.PutUint64(data[32:40], slot)
	binary.LittleEndian.PutUint64(data[40:48], ts)
	copy(data[48:80], storeKey[:])
	data[80] = lpDecimals
	data[81] = byte(len(custodies))
	for i, c := range custodies {
		off := poolHeaderLen + i*custodySize
		copy(data[off:off+32], c.mint[:])
		copy(data[off+32:off+64], c.feedKey[:])
		binary.LittleEndian.PutUint64(data[off+64:off+72], c.reserve)
		data[off+72] = c.decimals
		binary.LittleEndian.PutUint16(data[off+73:off+75], c.priceSlot)
	}
	return &accounts.Account{Key: domain.PubKey{0xAA}, Data: data}
}

// pythFeed builds a push-based feed account for recompute tests.
func pythFeed(key domain.PubKey, price int64, expo int32, slot uint64, ts int64) *accounts.Account {
	data := make([]byte, 56)
	binary.LittleEndian.PutUint32(data[0:4], 0xa1b2c3d4)
	binary.LittleEndian.PutUint32(data[4:8], uint32(expo))
	binary.LittleEndian.PutUint64(data[8:16], uint64(price))
	binary.LittleEndian.PutUint64(data[24:32], slot)
	binary.LittleEndian.PutUint64(data[32:40], uint64(ts))
	return &accounts.Account{Key: key, Data: data}
}

func twoCustodyPool(storeKey domain.PubKey) *accounts.Account {
	custodies := []testCustody{
		{mint: domain.PubKey{1}, feedKey: domain.PubKey{11}, reserve: 1000, decimals: 3, priceSlot: 2},
		{mint: domain.PubKey{2}, feedKey: domain.PubKey{12}, reserve: 500, decimals: 2, priceSlot: 3},
	}
	// 2 LP shares outstanding at 6 decimals.
	return poolAccount(2_000_000, domain.Price{Value: 55, Exp: 1}, 40, 400, storeKey, 6, custodies)
}

func TestGetPriceNoRecompute_ReturnsReportedPrice(t *testing.T) {
	acc := twoCustodyPool(domain.PubKey{9})

	dp, err := GetPriceNoRecompute(acc, domain.Clock{Slot: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 55, Exp: 1}) {
		t.Errorf("expected reported {55 1}, got %+v", dp.Price)
	}
	if dp.LastUpdatedSlot != 40 || dp.UnixTimestamp != 400 {
		t.Errorf("expected pool's own stamp {40 400}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetPriceNoRecompute_ZeroSupply(t *testing.T) {
	acc := poolAccount(0, domain.Price{Value: 1, Exp: 0}, 1, 1, domain.PubKey{}, 6,
		[]testCustody{{reserve: 1, decimals: 0}})

	_, err := GetPriceNoRecompute(acc, domain.Clock{})
	if !errors.Is(err, ErrZeroSupply) {
		t.Errorf("expected ErrZeroSupply, got %v", err)
	}
}

func TestGetPriceRecomputed_CombinesReservesAtFeedPrices(t *testing.T) {
	acc := twoCustodyPool(domain.PubKey{9})
	// Custody A: 1.0 units at 2.00; custody B: 5.0 units at 1.00.
	// Total value 7.0 over 2 shares = 3.5 per share.
	feeds := accounts.NewIterator([]*accounts.Account{
		pythFeed(domain.PubKey{11}, 200, -2, 10, 100),
		pythFeed(domain.PubKey{12}, 100, -2, 5, 50),
	})

	dp, err := GetPriceRecomputed(acc, domain.Clock{Slot: 100}, feeds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 350_000_000, Exp: 8}) {
		t.Errorf("expected {350000000 8}, got %+v", dp.Price)
	}
	// Staleness is the minimum over contributing feeds.
	if dp.LastUpdatedSlot != 5 || dp.UnixTimestamp != 50 {
		t.Errorf("expected oldest stamp {5 50}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
	if feeds.Remaining() != 0 {
		t.Errorf("expected feeds drained, %d left", feeds.Remaining())
	}
}

func TestGetPriceRecomputed_FeedKeyMismatch(t *testing.T) {
	acc := twoCustodyPool(domain.PubKey{9})
	feeds := accounts.NewIterator([]*accounts.Account{
		pythFeed(domain.PubKey{99}, 200, -2, 10, 100),
	})

	_, err := GetPriceRecomputed(acc, domain.Clock{}, feeds)
	if !errors.Is(err, ErrFeedMismatch) {
		t.Errorf("expected ErrFeedMismatch, got %v", err)
	}
}

func TestGetPriceRecomputed_MissingFeeds(t *testing.T) {
	acc := twoCustodyPool(domain.PubKey{9})

	_, err := GetPriceRecomputed(acc, domain.Clock{}, accounts.NewIterator(nil))
	if !errors.Is(err, accounts.ErrNoMoreAccounts) {
		t.Errorf("expected ErrNoMoreAccounts, got %v", err)
	}
}

func storeFixture() (*domain.OracleMappings, *domain.OraclePrices) {
	mappings := &domain.OracleMappings{}
	mappings.Entries[2] = domain.MappingEntry{PriceAccount: domain.PubKey{11}, Kind: 0}
	mappings.Entries[3] = domain.MappingEntry{PriceAccount: domain.PubKey{12}, Kind: 0}
	prices := &domain.OraclePrices{}
	prices.Set(2, domain.DatedPrice{Price: domain.Price{Value: 200, Exp: 2}, LastUpdatedSlot: 10, UnixTimestamp: 100})
	prices.Set(3, domain.DatedPrice{Price: domain.Price{Value: 100, Exp: 2}, LastUpdatedSlot: 5, UnixTimestamp: 50})
	return mappings, prices
}

func TestGetPriceRecomputedFromStore_UsesStoredPrices(t *testing.T) {
	storeKey := domain.PubKey{9}
	acc := twoCustodyPool(storeKey)
	mappings, prices := storeFixture()

	dp, err := GetPriceRecomputedFromStore(7, acc, domain.Clock{Slot: 999}, storeKey, prices, mappings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 350_000_000, Exp: 8}) {
		t.Errorf("expected {350000000 8}, got %+v", dp.Price)
	}
	if dp.LastUpdatedSlot != 5 || dp.UnixTimestamp != 50 {
		t.Errorf("expected oldest stamp {5 50}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetPriceRecomputedFromStore_WrongStore(t *testing.T) {
	acc := twoCustodyPool(domain.PubKey{9})
	mappings, prices := storeFixture()

	_, err := GetPriceRecomputedFromStore(7, acc, domain.Clock{}, domain.PubKey{8}, prices, mappings)
	if !errors.Is(err, ErrWrongPriceStore) {
		t.Errorf("expected ErrWrongPriceStore, got %v", err)
	}
}

func TestGetPriceRecomputedFromStore_SelfReference(t *testing.T) {
	storeKey := domain.PubKey{9}
	acc := twoCustodyPool(storeKey)
	mappings, prices := storeFixture()

	// Dispatch at slot 2, which custody A references.
	_, err := GetPriceRecomputedFromStore(2, acc, domain.Clock{}, storeKey, prices, mappings)
	if !errors.Is(err, ErrSelfReference) {
		t.Errorf("expected ErrSelfReference, got %v", err)
	}
}

func TestGetPriceRecomputedFromStore_MappingMismatch(t *testing.T) {
	storeKey := domain.PubKey{9}
	acc := twoCustodyPool(storeKey)
	mappings, prices := storeFixture()
	mappings.Entries[2].PriceAccount = domain.PubKey{77}

	_, err := GetPriceRecomputedFromStore(7, acc, domain.Clock{}, storeKey, prices, mappings)
	if !errors.Is(err, ErrMappingMismatch) {
		t.Errorf("expected ErrMappingMismatch, got %v", err)
	}
}

func TestGetPriceRecomputedFromStore_UnresolvedUnderlying(t *testing.T) {
	storeKey := domain.PubKey{9}
	acc := twoCustodyPool(storeKey)
	mappings, prices := storeFixture()
	prices.Set(3, domain.DatedPrice{})

	_, err := GetPriceRecomputedFromStore(7, acc, domain.Clock{}, storeKey, prices, mappings)
	if !errors.Is(err, ErrUnresolvedUnderlying) {
		t.Errorf("expected ErrUnresolvedUnderlying, got %v", err)
	}
}

func TestValidatePool_Shape(t *testing.T) {
	if err := ValidatePool(nil); !errors.Is(err, ErrNotPool) {
		t.Errorf("nil account: expected ErrNotPool, got %v", err)
	}

	short := &accounts.Account{Data: make([]byte, 10)}
	if err := ValidatePool(short); !errors.Is(err, ErrNotPool) {
		t.Errorf("short account: expected ErrNotPool, got %v", err)
	}

	badDisc := twoCustodyPool(domain.PubKey{})
	badDisc.Data[0] = 'x'
	if err := ValidatePool(badDisc); !errors.Is(err, ErrNotPool) {
		t.Errorf("bad discriminator: expected ErrNotPool, got %v", err)
	}

	noCustody := twoCustodyPool(domain.PubKey{})
	noCustody.Data[81] = 0
	if err := ValidatePool(noCustody); !errors.Is(err, ErrNotPool) {
		t.Errorf("zero custodies: expected ErrNotPool, got %v", err)
	}

	truncated := twoCustodyPool(domain.PubKey{})
	truncated.Data[81] = 5
	if err := ValidatePool(truncated); !errors.Is(err, ErrNotPool) {
		t.Errorf("truncated custody table: expected ErrNotPool, got %v", err)
	}

	if err := ValidatePool(twoCustodyPool(domain.PubKey{})); err != nil {
		t.Errorf("well-formed pool should pass, got %v", err)
	}
}
