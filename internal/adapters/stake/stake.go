// Package stake resolves stake-pool rate accounts (SPL stake pools and the
// mSOL pool state). Both rates are reference values: they update once per
// epoch, ignore staking fees, and unstaking is not immediate, so they lag
// real exchange rates and must not be used directly for valuation.
package stake

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// SPL stake pool layout (little endian):
//
//	0  [8]byte discriminator "splstake"
//	8  u64 total lamports
//	16 u64 pool token supply
//	24 u64 last update slot
//	32 i64 last update timestamp
const splAccountLen = 40

// mSOL state layout (little endian):
//
//	0  [8]byte discriminator "msolstat"
//	8  u64 total virtual staked lamports
//	16 u64 msol supply
//	24 u64 last update slot
//	32 i64 last update timestamp
const msolAccountLen = 40

var (
	splDiscriminator  = [8]byte{'s', 'p', 'l', 's', 't', 'a', 'k', 'e'}
	msolDiscriminator = [8]byte{'m', 's', 'o', 'l', 's', 't', 'a', 't'}
)

var (
	// ErrNotStakePool is returned when the account is not shaped like a
	// stake pool record.
	ErrNotStakePool = errors.New("stake: not a stake pool account")

	// ErrZeroSupply is returned when the pool token supply is zero and no
	// rate can be derived.
	ErrZeroSupply = errors.New("stake: zero pool token supply")
)

// rateExp is the exponent of the returned SOL rate. Lamports carry 9
// decimals; one extra digit keeps sub-lamport precision from the division.
const rateExp = 10

// GetSplStakeRate resolves the SOL-per-pool-token rate of an SPL stake pool.
func GetSplStakeRate(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return rate(acc, splDiscriminator, splAccountLen)
}

// GetMsolStakeRate resolves the SOL-per-mSOL rate of the mSOL pool state.
func GetMsolStakeRate(acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return rate(acc, msolDiscriminator, msolAccountLen)
}

func rate(acc *accounts.Account, disc [8]byte, minLen int) (domain.DatedPrice, error) {
	if err := validate(acc, disc, minLen); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	lamports := binary.LittleEndian.Uint64(data[8:16])
	supply := binary.LittleEndian.Uint64(data[16:24])
	if supply == 0 {
		return domain.DatedPrice{}, ErrZeroSupply
	}

	// rate = lamports / supply, both in base units, rendered at rateExp.
	r := decimal.NewFromUint64(lamports).
		Div(decimal.NewFromUint64(supply)).
		Shift(rateExp).Truncate(0)
	if !r.IsPositive() || !r.BigInt().IsUint64() {
		return domain.DatedPrice{}, fmt.Errorf("%w: unrepresentable rate", ErrNotStakePool)
	}

	updateTimestamp := int64(binary.LittleEndian.Uint64(data[32:40]))
	return domain.DatedPrice{
		Price:           domain.Price{Value: r.BigInt().Uint64(), Exp: rateExp},
		LastUpdatedSlot: binary.LittleEndian.Uint64(data[24:32]),
		UnixTimestamp:   uint64(updateTimestamp),
	}, nil
}

func validate(acc *accounts.Account, disc [8]byte, minLen int) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotStakePool)
	}
	if len(acc.Data) < minLen {
		return fmt.Errorf("%w: %d bytes", ErrNotStakePool, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != disc {
		return fmt.Errorf("%w: bad discriminator", ErrNotStakePool)
	}
	return nil
}
