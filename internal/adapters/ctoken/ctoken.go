// Package ctoken resolves lending-market collateral token exchange rates.
package ctoken

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// Reserve account layout (little endian):
//
//	0  [8]byte discriminator "ctreserv"
//	8  u64 exchange rate mantissa, WAD scaled (1e18)
//	16 u64 last update slot
//	24 i64 last update timestamp
const accountLen = 32

var discriminator = [8]byte{'c', 't', 'r', 'e', 's', 'e', 'r', 'v'}

// wadExp is the scale of the stored exchange rate mantissa.
const wadExp = 18

var (
	// ErrNotReserve is returned when the account is not shaped like a
	// lending reserve record.
	ErrNotReserve = errors.New("ctoken: not a reserve account")

	// ErrZeroRate is returned on a zero exchange rate.
	ErrZeroRate = errors.New("ctoken: zero exchange rate")
)

// GetPrice resolves the collateral-to-liquidity exchange rate of a reserve.
func GetPrice(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	if err := Validate(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	mantissa := binary.LittleEndian.Uint64(data[8:16])
	if mantissa == 0 {
		return domain.DatedPrice{}, ErrZeroRate
	}

	// The WAD mantissa carries more precision than the fixed-point price;
	// renormalize to MaxPriceExponent.
	r := decimal.NewFromUint64(mantissa).Shift(-wadExp).
		Shift(domain.MaxPriceExponent).Truncate(0)
	if !r.IsPositive() || !r.BigInt().IsUint64() {
		return domain.DatedPrice{}, fmt.Errorf("%w: unrepresentable rate", ErrNotReserve)
	}

	updateTimestamp := int64(binary.LittleEndian.Uint64(data[24:32]))
	return domain.DatedPrice{
		Price:           domain.Price{Value: r.BigInt().Uint64(), Exp: domain.MaxPriceExponent},
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[16:24]),
		UnixTimestamp:   uint64(updateTimestamp),
	}, nil
}

// Validate checks that the account is shaped like a reserve record.
func Validate(acc *accounts.Account) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotReserve)
	}
	if len(acc.Data) < accountLen {
		return fmt.Errorf("%w: %d bytes", ErrNotReserve, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != discriminator {
		return fmt.Errorf("%w: bad discriminator", ErrNotReserve)
	}
	return nil
}
