// Package pyth resolves push-based and pull-based Pyth price accounts.
package pyth

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// MagicNumber marks a push-based price account.
const MagicNumber uint32 = 0xa1b2c3d4

// Push-based account layout (little endian):
//
//	0  u32 magic
//	4  i32 exponent
//	8  i64 aggregate price
//	16 u64 confidence
//	24 u64 publish slot
//	32 i64 publish time
//	40 i64 ema price
//	48 u64 ema confidence
const pushAccountLen = 56

// Pull-based update account layout (little endian):
//
//	0  [8]byte discriminator "pythpull"
//	8  i32 exponent
//	12 i64 price
//	20 u64 confidence
//	28 i64 ema price
//	36 u64 ema confidence
//	44 u64 posted slot
//	52 i64 publish time
const pullAccountLen = 60

var pullDiscriminator = [8]byte{'p', 'y', 't', 'h', 'p', 'u', 'l', 'l'}

var (
	// ErrNotPriceAccount is returned when the account is not shaped like a
	// Pyth price record.
	ErrNotPriceAccount = errors.New("pyth: not a price account")

	// ErrNonPositivePrice is returned when the feed reports a zero or
	// negative aggregate.
	ErrNonPositivePrice = errors.New("pyth: non-positive price")

	// ErrBadExponent is returned when the account carries an exponent the
	// fixed-point price cannot represent.
	ErrBadExponent = errors.New("pyth: unsupported exponent")
)

// GetPrice resolves the aggregate price of a push-based account.
func GetPrice(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return pushPrice(acc, false)
}

// GetEmaPrice resolves the exponential moving average of a push-based
// account.
func GetEmaPrice(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return pushPrice(acc, true)
}

func pushPrice(acc *accounts.Account, ema bool) (domain.DatedPrice, error) {
	if err := ValidatePriceAccount(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	raw := int64(binary.LittleEndian.Uint64(data[8:16]))
	if ema {
		raw = int64(binary.LittleEndian.Uint64(data[40:48]))
	}
	price, err := toPrice(raw, int32(binary.LittleEndian.Uint32(data[4:8])))
	if err != nil {
		return domain.DatedPrice{}, err
	}

	publishTime := int64(binary.LittleEndian.Uint64(data[32:40]))
	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[24:32]),
		UnixTimestamp:   uint64(publishTime),
	}, nil
}

// GetPullPrice resolves the price of a pull-based update account.
func GetPullPrice(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return pullPrice(acc, false)
}

// GetPullEmaPrice resolves the EMA of a pull-based update account.
func GetPullEmaPrice(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return pullPrice(acc, true)
}

func pullPrice(acc *accounts.Account, ema bool) (domain.DatedPrice, error) {
	if err := ValidatePullAccount(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	raw := int64(binary.LittleEndian.Uint64(data[12:20]))
	if ema {
		raw = int64(binary.LittleEndian.Uint64(data[28:36]))
	}
	price, err := toPrice(raw, int32(binary.LittleEndian.Uint32(data[8:12])))
	if err != nil {
		return domain.DatedPrice{}, err
	}

	publishTime := int64(binary.LittleEndian.Uint64(data[52:60]))
	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[44:52]),
		UnixTimestamp:   uint64(publishTime),
	}, nil
}

// toPrice converts a raw mantissa and (negative) exponent into the
// fixed-point representation.
func toPrice(raw int64, expo int32) (domain.Price, error) {
	if raw <= 0 {
		return domain.Price{}, ErrNonPositivePrice
	}
	if expo > 0 || -expo > domain.MaxPriceExponent {
		return domain.Price{}, fmt.Errorf("%w: %d", ErrBadExponent, expo)
	}
	return domain.Price{Value: uint64(raw), Exp: uint64(-expo)}, nil
}

// ValidatePriceAccount checks that the account is shaped like a push-based
// price record. Called before a mapping entry is committed.
func ValidatePriceAccount(acc *accounts.Account) error {
	if acc == nil {
		return ErrAccountMissing
	}
	if len(acc.Data) < pushAccountLen {
		return fmt.Errorf("%w: %d bytes", ErrNotPriceAccount, len(acc.Data))
	}
	if binary.LittleEndian.Uint32(acc.Data[0:4]) != MagicNumber {
		return fmt.Errorf("%w: bad magic", ErrNotPriceAccount)
	}
	return nil
}

// ValidatePullAccount checks that the account is shaped like a pull-based
// price update record.
func ValidatePullAccount(acc *accounts.Account) error {
	if acc == nil {
		return ErrAccountMissing
	}
	if len(acc.Data) < pullAccountLen {
		return fmt.Errorf("%w: %d bytes", ErrNotPriceAccount, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != pullDiscriminator {
		return fmt.Errorf("%w: bad discriminator", ErrNotPriceAccount)
	}
	return nil
}

// ErrAccountMissing is returned when validation runs without an account.
var ErrAccountMissing = errors.New("pyth: price account missing")
