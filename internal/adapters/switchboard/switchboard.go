// Package switchboard resolves Switchboard v2 aggregator accounts.
package switchboard

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// Aggregator account layout (little endian):
//
//	0  [8]byte discriminator "sbv2aggr"
//	8  i64 latest round mantissa
//	16 u32 latest round scale
//	20 u64 round open slot
//	28 i64 round open timestamp
//	36 u32 min oracle results
//	40 u32 oracle results count
const accountLen = 44

var discriminator = [8]byte{'s', 'b', 'v', '2', 'a', 'g', 'g', 'r'}

var (
	// ErrNotAggregator is returned when the account is not shaped like an
	// aggregator record.
	ErrNotAggregator = errors.New("switchboard: not an aggregator account")

	// ErrNonPositivePrice is returned on a zero or negative round result.
	ErrNonPositivePrice = errors.New("switchboard: non-positive round result")

	// ErrBadScale is returned when the round scale exceeds what the
	// fixed-point price can carry.
	ErrBadScale = errors.New("switchboard: unsupported scale")

	// ErrNotEnoughResults is returned when the round closed with fewer
	// oracle responses than the aggregator's own minimum.
	ErrNotEnoughResults = errors.New("switchboard: round below minimum oracle results")
)

// GetPrice resolves the latest confirmed round of an aggregator account.
func GetPrice(acc *accounts.Account) (domain.DatedPrice, error) {
	if err := Validate(acc); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	mantissa := int64(binary.LittleEndian.Uint64(data[8:16]))
	if mantissa <= 0 {
		return domain.DatedPrice{}, ErrNonPositivePrice
	}
	scale := binary.LittleEndian.Uint32(data[16:20])
	if scale > domain.MaxPriceExponent {
		return domain.DatedPrice{}, fmt.Errorf("%w: %d", ErrBadScale, scale)
	}

	minResults := binary.LittleEndian.Uint32(data[36:40])
	numResults := binary.LittleEndian.Uint32(data[40:44])
	if numResults < minResults {
		return domain.DatedPrice{}, fmt.Errorf("%w: %d < %d", ErrNotEnoughResults, numResults, minResults)
	}

	openTimestamp := int64(binary.LittleEndian.Uint64(data[28:36]))
	return domain.DatedPrice{
		Price:           domain.Price{Value: uint64(mantissa), Exp: uint64(scale)},
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[20:28]),
		UnixTimestamp:   uint64(openTimestamp),
	}, nil
}

// Validate checks that the account is shaped like an aggregator record.
func Validate(acc *accounts.Account) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotAggregator)
	}
	if len(acc.Data) < accountLen {
		return fmt.Errorf("%w: %d bytes", ErrNotAggregator, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != discriminator {
		return fmt.Errorf("%w: bad discriminator", ErrNotAggregator)
	}
	return nil
}
