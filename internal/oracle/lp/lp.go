// Package lp resolves perp-pool LP token prices. Three paths exist: reading
// the pool's own reported price, recomputing from reserves with externally
// fetched underlying feeds, and recomputing from reserves with the prices
// already resolved in the shared price store.
package lp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/adapters/pyth"
	"solana-price-oracle/internal/domain"
)

// Pool account layout (little endian):
//
//	0  [8]byte discriminator "perppool"
//	8  u64 lp token supply
//	16 u64 reported lp price value
//	24 u64 reported lp price exponent
//	32 u64 last update slot
//	40 i64 last update timestamp
//	48 [32]byte expected price store key
//	80 u8 lp token decimals
//	81 u8 custody count
//	82 custodies, custodySize bytes each:
//	   [32]byte mint, [32]byte feed key, u64 reserve, u8 decimals,
//	   u16 price store slot
const (
	poolHeaderLen = 82
	custodySize   = 75
	maxCustodies  = 8
)

var discriminator = [8]byte{'p', 'e', 'r', 'p', 'p', 'o', 'o', 'l'}

var (
	// ErrNotPool is returned when the account is not shaped like a perp
	// pool record.
	ErrNotPool = errors.New("lp: not a perp pool account")

	// ErrZeroSupply is returned when no LP tokens are outstanding.
	ErrZeroSupply = errors.New("lp: zero lp token supply")

	// ErrWrongPriceStore is returned when the pool is configured against a
	// different price store than the one being dispatched.
	ErrWrongPriceStore = errors.New("lp: pool references a different price store")

	// ErrSelfReference is returned when a custody's price slot points back
	// at the LP token's own slot.
	ErrSelfReference = errors.New("lp: custody references the lp token's own slot")

	// ErrFeedMismatch is returned when a supplied feed account does not
	// match the custody's configured feed key.
	ErrFeedMismatch = errors.New("lp: custody feed account mismatch")

	// ErrMappingMismatch is returned when the mapping table's entry for a
	// custody's price slot is not fed by the custody's configured feed.
	ErrMappingMismatch = errors.New("lp: mapping slot not configured for custody feed")

	// ErrUnresolvedUnderlying is returned when a custody's price slot holds
	// no resolved price yet.
	ErrUnresolvedUnderlying = errors.New("lp: underlying price not resolved in store")
)

// lpExp is the exponent of returned LP token prices.
const lpExp = 8

type custody struct {
	mint      domain.PubKey
	feedKey   domain.PubKey
	reserve   uint64
	decimals  byte
	priceSlot uint16
}

type pool struct {
	supply        uint64
	reportedPrice domain.Price
	lastSlot      uint64
	lastTimestamp uint64
	priceStoreKey domain.PubKey
	lpDecimals    byte
	custodies     []custody
}

// GetPriceNoRecompute returns the pool's own reported LP price. The value
// can lag the real pool state; it is a reference price only.
func GetPriceNoRecompute(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	p, err := parsePool(acc)
	if err != nil {
		return domain.DatedPrice{}, err
	}
	return domain.DatedPrice{
		Price:           p.reportedPrice,
		LastUpdatedSlot: p.lastSlot,
		UnixTimestamp:   p.lastTimestamp,
	}, nil
}

// GetPriceRecomputed recomputes the LP price from pool reserves using
// externally fetched underlying feeds. It draws one feed account per
// custody, in custody order, each of which must match the custody's
// configured feed key.
func GetPriceRecomputed(acc *accounts.Account, clock domain.Clock, extra *accounts.Iterator) (domain.DatedPrice, error) {
	p, err := parsePool(acc)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	resolve := func(c custody) (domain.DatedPrice, error) {
		feed, err := extra.Next()
		if err != nil {
			return domain.DatedPrice{}, fmt.Errorf("lp: %w", err)
		}
		if feed.Key != c.feedKey {
			return domain.DatedPrice{}, fmt.Errorf("%w: got %s", ErrFeedMismatch, accounts.KeyString(feed.Key))
		}
		return pyth.GetPrice(feed, clock)
	}
	return p.combine(resolve)
}

// GetPriceRecomputedFromStore recomputes the LP price from pool reserves
// using the prices already resolved in the shared store. index is the LP
// token's own mapping slot; pricesKey identifies the store being read so a
// pool configured against a different deployment is rejected. The mapping
// table is cross-checked so each custody's slot is actually fed by the feed
// the pool expects.
func GetPriceRecomputedFromStore(
	index int,
	acc *accounts.Account,
	_ domain.Clock,
	pricesKey domain.PubKey,
	prices *domain.OraclePrices,
	mappings *domain.OracleMappings,
) (domain.DatedPrice, error) {
	p, err := parsePool(acc)
	if err != nil {
		return domain.DatedPrice{}, err
	}
	if p.priceStoreKey != pricesKey {
		return domain.DatedPrice{}, fmt.Errorf("%w: want %s", ErrWrongPriceStore, accounts.KeyString(p.priceStoreKey))
	}

	resolve := func(c custody) (domain.DatedPrice, error) {
		slot := int(c.priceSlot)
		if slot == index {
			return domain.DatedPrice{}, fmt.Errorf("%w: slot %d", ErrSelfReference, slot)
		}
		entry, ok := mappings.Entry(slot)
		if !ok {
			return domain.DatedPrice{}, fmt.Errorf("lp: custody price slot %d out of range", slot)
		}
		if entry.PriceAccount != c.feedKey {
			return domain.DatedPrice{}, fmt.Errorf("%w: slot %d", ErrMappingMismatch, slot)
		}
		stored, _ := prices.At(slot)
		if stored.Price.IsZero() {
			return domain.DatedPrice{}, fmt.Errorf("%w: slot %d", ErrUnresolvedUnderlying, slot)
		}
		return stored, nil
	}
	return p.combine(resolve)
}

// combine folds custody reserves and underlying prices into one LP price.
// The result is only as fresh as its least-fresh input: the returned slot
// and timestamp are the minimum across all contributing prices.
func (p *pool) combine(resolve func(custody) (domain.DatedPrice, error)) (domain.DatedPrice, error) {
	total := decimal.Zero
	var oldestSlot, oldestTimestamp uint64

	for i, c := range p.custodies {
		dp, err := resolve(c)
		if err != nil {
			return domain.DatedPrice{}, fmt.Errorf("custody %d (%s): %w", i, accounts.KeyString(c.mint), err)
		}

		reserve := decimal.NewFromUint64(c.reserve).Shift(-int32(c.decimals))
		total = total.Add(reserve.Mul(dp.Price.Decimal()))

		if i == 0 || dp.LastUpdatedSlot < oldestSlot {
			oldestSlot = dp.LastUpdatedSlot
		}
		if i == 0 || dp.UnixTimestamp < oldestTimestamp {
			oldestTimestamp = dp.UnixTimestamp
		}
	}

	shares := decimal.NewFromUint64(p.supply).Shift(-int32(p.lpDecimals))
	price, err := domain.PriceFromDecimal(total.Div(shares), lpExp)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: oldestSlot,
		UnixTimestamp:   oldestTimestamp,
	}, nil
}

func parsePool(acc *accounts.Account) (*pool, error) {
	if err := ValidatePool(acc); err != nil {
		return nil, err
	}
	data := acc.Data

	p := &pool{
		supply: binary.LittleEndian.Uint64(data[8:16]),
		reportedPrice: domain.Price{
			Value: binary.LittleEndian.Uint64(data[16:24]),
			Exp:   binary.LittleEndian.Uint64(data[24:32]),
		},
		lastSlot:      binary.LittleEndian.Uint64(data[32:40]),
		lastTimestamp: uint64(int64(binary.LittleEndian.Uint64(data[40:48]))),
		priceStoreKey: domain.PubKey(data[48:80]),
		lpDecimals:    data[80],
	}
	if p.supply == 0 {
		return nil, ErrZeroSupply
	}

	count := int(data[81])
	for i := 0; i < count; i++ {
		off := poolHeaderLen + i*custodySize
		p.custodies = append(p.custodies, custody{
			mint:      domain.PubKey(data[off : off+32]),
			feedKey:   domain.PubKey(data[off+32 : off+64]),
			reserve:   binary.LittleEndian.Uint64(data[off+64 : off+72]),
			decimals:  data[off+72],
			priceSlot: binary.LittleEndian.Uint16(data[off+73 : off+75]),
		})
	}
	return p, nil
}

// ValidatePool checks that the account is shaped like a perp pool record
// with a coherent custody table. Called before a mapping entry is
// committed.
func ValidatePool(acc *accounts.Account) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotPool)
	}
	if len(acc.Data) < poolHeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrNotPool, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != discriminator {
		return fmt.Errorf("%w: bad discriminator", ErrNotPool)
	}
	count := int(acc.Data[81])
	if count == 0 || count > maxCustodies {
		return fmt.Errorf("%w: custody count %d", ErrNotPool, count)
	}
	if len(acc.Data) < poolHeaderLen+count*custodySize {
		return fmt.Errorf("%w: truncated custody table", ErrNotPool)
	}
	exp := binary.LittleEndian.Uint64(acc.Data[24:32])
	if exp > domain.MaxPriceExponent {
		return fmt.Errorf("%w: reported price exponent %d", ErrNotPool, exp)
	}
	return nil
}
