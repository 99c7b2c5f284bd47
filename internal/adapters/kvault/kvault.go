// Package kvault resolves vault share tokens: the share price computed from
// the vault's two underlying reserves, and the per-share amount of either
// underlying token.
package kvault

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/adapters/pyth"
	"solana-price-oracle/internal/domain"
)

// Vault account layout (little endian):
//
//	0   [8]byte discriminator "kvltpool"
//	8   u64 share supply
//	16  u64 token A reserve
//	24  u64 token B reserve
//	32  u8 share decimals
//	33  u8 token A decimals
//	34  u8 token B decimals
//	40  [32]byte token A feed key
//	72  [32]byte token B feed key
//	104 u64 last update slot
//	112 i64 last update timestamp
const accountLen = 120

var discriminator = [8]byte{'k', 'v', 'l', 't', 'p', 'o', 'o', 'l'}

// TokenType selects which underlying of a two-token vault to quote.
type TokenType int

const (
	// TokenA quotes the vault share in its first underlying token.
	TokenA TokenType = iota
	// TokenB quotes the vault share in its second underlying token.
	TokenB
)

var (
	// ErrNotVault is returned when the account is not shaped like a vault
	// record.
	ErrNotVault = errors.New("kvault: not a vault account")

	// ErrZeroSupply is returned when no shares are outstanding.
	ErrZeroSupply = errors.New("kvault: zero share supply")

	// ErrFeedMismatch is returned when a supplied underlying feed account
	// does not match the key the vault is configured with.
	ErrFeedMismatch = errors.New("kvault: underlying feed account mismatch")
)

// shareExp is the exponent of returned share prices and ratios.
const shareExp = 8

// GetSharePrice computes the vault share price from the two underlying
// reserves and their price feeds. It draws exactly two accounts from the
// auxiliary stream: the token A feed, then the token B feed, which must
// match the keys the vault is configured with.
//
// The result is only as fresh as its least-fresh input: the returned slot
// and timestamp are the oldest across both feeds.
func GetSharePrice(acc *accounts.Account, _ domain.Clock, extra *accounts.Iterator) (domain.DatedPrice, error) {
	if err := Validate(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	supply := binary.LittleEndian.Uint64(data[8:16])
	if supply == 0 {
		return domain.DatedPrice{}, ErrZeroSupply
	}

	feedA, err := nextFeed(extra, data[40:72])
	if err != nil {
		return domain.DatedPrice{}, err
	}
	feedB, err := nextFeed(extra, data[72:104])
	if err != nil {
		return domain.DatedPrice{}, err
	}

	priceA, err := pyth.GetPrice(feedA, domain.Clock{})
	if err != nil {
		return domain.DatedPrice{}, fmt.Errorf("token A feed: %w", err)
	}
	priceB, err := pyth.GetPrice(feedB, domain.Clock{})
	if err != nil {
		return domain.DatedPrice{}, fmt.Errorf("token B feed: %w", err)
	}

	valueA := amount(data[16:24], data[33]).Mul(priceA.Price.Decimal())
	valueB := amount(data[24:32], data[34]).Mul(priceB.Price.Decimal())
	shares := amount(data[8:16], data[32])

	price, err := domain.PriceFromDecimal(valueA.Add(valueB).Div(shares), shareExp)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: min(priceA.LastUpdatedSlot, priceB.LastUpdatedSlot),
		UnixTimestamp:   min(priceA.UnixTimestamp, priceB.UnixTimestamp),
	}, nil
}

// GetTokenPerShare computes how much of one underlying token backs a single
// vault share. Staleness comes from the vault account itself.
func GetTokenPerShare(acc *accounts.Account, _ domain.Clock, token TokenType) (domain.DatedPrice, error) {
	if err := Validate(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	supply := binary.LittleEndian.Uint64(data[8:16])
	if supply == 0 {
		return domain.DatedPrice{}, ErrZeroSupply
	}

	var reserve decimal.Decimal
	switch token {
	case TokenA:
		reserve = amount(data[16:24], data[33])
	case TokenB:
		reserve = amount(data[24:32], data[34])
	default:
		panic(fmt.Sprintf("unknown vault token type %d", token))
	}

	shares := amount(data[8:16], data[32])
	price, err := domain.PriceFromDecimal(reserve.Div(shares), shareExp)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	updateTimestamp := int64(binary.LittleEndian.Uint64(data[112:120]))
	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[104:112]),
		UnixTimestamp:   uint64(updateTimestamp),
	}, nil
}

func nextFeed(extra *accounts.Iterator, wantKey []byte) (*accounts.Account, error) {
	feed, err := extra.Next()
	if err != nil {
		return nil, fmt.Errorf("kvault: %w", err)
	}
	if feed.Key != domain.PubKey(wantKey) {
		return nil, fmt.Errorf("%w: got %s", ErrFeedMismatch, accounts.KeyString(feed.Key))
	}
	return feed, nil
}

// amount converts a raw base-unit quantity to a token amount.
func amount(raw []byte, decimals byte) decimal.Decimal {
	return decimal.NewFromUint64(binary.LittleEndian.Uint64(raw)).Shift(-int32(decimals))
}

// Validate checks that the account is shaped like a vault record.
func Validate(acc *accounts.Account) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotVault)
	}
	if len(acc.Data) < accountLen {
		return fmt.Errorf("%w: %d bytes", ErrNotVault, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != discriminator {
		return fmt.Errorf("%w: bad discriminator", ErrNotVault)
	}
	return nil
}
