// Package clmm resolves concentrated-liquidity pool prices: Orca Whirlpool
// and Raydium CLMM sqrt-price accounts, and Meteora DLMM bin accounts. Each
// pool quotes token A in token B; the B-to-A direction is the inverse.
package clmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// Sqrt-price pool layout, shared by Whirlpool and Raydium CLMM accounts
// (little endian):
//
//	0  [8]byte discriminator
//	8  u128 sqrt price, Q64.64
//	24 u8 token A decimals
//	25 u8 token B decimals
//	32 u64 last update slot
//	40 i64 last update timestamp
const sqrtPoolLen = 48

// DLMM pool layout (little endian):
//
//	0  [8]byte discriminator "dlmmpool"
//	8  i32 active bin id
//	12 u16 bin step (basis points)
//	14 u8 token A decimals
//	15 u8 token B decimals
//	16 u64 last update slot
//	24 i64 last update timestamp
const dlmmPoolLen = 32

var (
	whirlpoolDiscriminator = [8]byte{'w', 'h', 'i', 'r', 'l', 'p', 'o', 'l'}
	raydiumDiscriminator   = [8]byte{'r', 'a', 'y', 'c', 'l', 'm', 'm', 'p'}
	dlmmDiscriminator      = [8]byte{'d', 'l', 'm', 'm', 'p', 'o', 'o', 'l'}
)

var (
	// ErrNotPool is returned when the account is not shaped like the
	// expected pool record.
	ErrNotPool = errors.New("clmm: not a pool account")

	// ErrZeroPrice is returned when the pool quotes a zero price and no
	// direction can be inverted.
	ErrZeroPrice = errors.New("clmm: zero pool price")
)

// poolExp is the exponent of returned pool prices.
const poolExp = 12

// twoPow64 is the Q64.64 fixed-point divisor.
var twoPow64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

// GetWhirlpoolPrice resolves an Orca Whirlpool account. aToB selects the
// quote direction.
func GetWhirlpoolPrice(aToB bool, acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return sqrtPoolPrice(aToB, acc, whirlpoolDiscriminator)
}

// GetRaydiumPrice resolves a Raydium CLMM pool account. aToB selects the
// quote direction.
func GetRaydiumPrice(aToB bool, acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	return sqrtPoolPrice(aToB, acc, raydiumDiscriminator)
}

func sqrtPoolPrice(aToB bool, acc *accounts.Account, disc [8]byte) (domain.DatedPrice, error) {
	if err := validate(acc, disc, sqrtPoolLen); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	sqrtPrice := new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[16:24]))
	sqrtPrice.Lsh(sqrtPrice, 64)
	sqrtPrice.Or(sqrtPrice, new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[8:16])))
	if sqrtPrice.Sign() == 0 {
		return domain.DatedPrice{}, ErrZeroPrice
	}

	// price(AtoB) = (sqrt/2^64)^2 * 10^(decimalsA - decimalsB)
	sqrt := decimal.NewFromBigInt(sqrtPrice, 0).Div(twoPow64)
	p := sqrt.Mul(sqrt).Shift(int32(data[24]) - int32(data[25]))

	return directedPrice(aToB, p, data[32:40], data[40:48])
}

// GetDlmmPrice resolves a Meteora DLMM pool account. aToB selects the quote
// direction.
func GetDlmmPrice(aToB bool, acc *accounts.Account, _ domain.Clock) (domain.DatedPrice, error) {
	if err := validate(acc, dlmmDiscriminator, dlmmPoolLen); err != nil {
		return domain.DatedPrice{}, err
	}
	data := acc.Data

	activeID := int32(binary.LittleEndian.Uint32(data[8:12]))
	binStep := binary.LittleEndian.Uint16(data[12:14])

	// price(AtoB) = (1 + binStep/10000)^activeID * 10^(decimalsA - decimalsB)
	base := decimal.New(1, 0).Add(decimal.New(int64(binStep), -4))
	p, err := base.PowInt32(activeID)
	if err != nil {
		return domain.DatedPrice{}, fmt.Errorf("%w: bin price: %v", ErrNotPool, err)
	}
	p = p.Shift(int32(data[14]) - int32(data[15]))

	return directedPrice(aToB, p, data[16:24], data[24:32])
}

func directedPrice(aToB bool, p decimal.Decimal, slotRaw, tsRaw []byte) (domain.DatedPrice, error) {
	if !p.IsPositive() {
		return domain.DatedPrice{}, ErrZeroPrice
	}
	if !aToB {
		p = decimal.New(1, 0).Div(p)
	}
	price, err := domain.PriceFromDecimal(p, poolExp)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	updateTimestamp := int64(binary.LittleEndian.Uint64(tsRaw))
	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: binary.LittleEndian.Uint64(slotRaw),
		UnixTimestamp:   uint64(updateTimestamp),
	}, nil
}

// ValidateWhirlpool checks that the account is shaped like a Whirlpool
// record.
func ValidateWhirlpool(acc *accounts.Account) error {
	return validate(acc, whirlpoolDiscriminator, sqrtPoolLen)
}

// ValidateRaydium checks that the account is shaped like a Raydium CLMM
// record.
func ValidateRaydium(acc *accounts.Account) error {
	return validate(acc, raydiumDiscriminator, sqrtPoolLen)
}

// ValidateDlmm checks that the account is shaped like a DLMM pool record.
func ValidateDlmm(acc *accounts.Account) error {
	return validate(acc, dlmmDiscriminator, dlmmPoolLen)
}

func validate(acc *accounts.Account, disc [8]byte, minLen int) error {
	if acc == nil {
		return fmt.Errorf("%w: account missing", ErrNotPool)
	}
	if len(acc.Data) < minLen {
		return fmt.Errorf("%w: %d bytes", ErrNotPool, len(acc.Data))
	}
	if [8]byte(acc.Data[0:8]) != disc {
		return fmt.Errorf("%w: bad discriminator", ErrNotPool)
	}
	return nil
}
