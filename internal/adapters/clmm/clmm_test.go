package clmm

import (
	"encoding/binary"
	"errors"
	"testing"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

// sqrtPoolAccount builds a Q64.64 sqrt-price pool with the given high and
// low words.
func sqrtPoolAccount(disc [8]byte, sqrtLow, sqrtHigh uint64, decA, decB byte, slot uint64, ts int64) *accounts.Account {
	data := make([]byte, sqrtPoolLen)
	copy(data[0:8], disc[:])
	binary.LittleEndian.PutUint64(data[8:16], sqrtLow)
	binary.LittleEndian.PutUint64(data[16:24], sqrtHigh)
	data[24] = decA
	data[25] = decB
	binary.LittleEndian.PutUint64(data[32:40], slot)
	binary.LittleEndian.PutUint64(data[40:48], uint64(ts))
	return &accounts.Account{Data: data}
}

func dlmmAccount(activeID int32, binStep uint16, decA, decB byte, slot uint64, ts int64) *accounts.Account {
	data := make([]byte, dlmmPoolLen)
	copy(data[0:8], dlmmDiscriminator[:])
	binary.LittleEndian.PutUint32(data[8:12], uint32(activeID))
	binary.LittleEndian.PutUint16(data[12:14], binStep)
	data[14] = decA
	data[15] = decB
	binary.LittleEndian.PutUint64(data[16:24], slot)
	binary.LittleEndian.PutUint64(data[24:32], uint64(ts))
	return &accounts.Account{Data: data}
}

func TestGetWhirlpoolPrice_AtoB(t *testing.T) {
	// sqrt = 2^65 / 2^64 = 2.0, so price = 4.0 with equal decimals.
	acc := sqrtPoolAccount(whirlpoolDiscriminator, 0, 2, 6, 6, 31, 1_610_000_000)

	dp, err := GetWhirlpoolPrice(true, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 4_000_000_000_000, Exp: poolExp}) {
		t.Errorf("expected 4.0 at exponent %d, got %+v", poolExp, dp.Price)
	}
	if dp.LastUpdatedSlot != 31 || dp.UnixTimestamp != 1_610_000_000 {
		t.Errorf("expected stamp {31 1610000000}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetWhirlpoolPrice_BtoAInverts(t *testing.T) {
	acc := sqrtPoolAccount(whirlpoolDiscriminator, 0, 2, 6, 6, 1, 1)

	dp, err := GetWhirlpoolPrice(false, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 250_000_000_000, Exp: poolExp}) {
		t.Errorf("expected 0.25 at exponent %d, got %+v", poolExp, dp.Price)
	}
}

func TestSqrtPoolPrice_DecimalAdjustment(t *testing.T) {
	// Equal sqrt but token A carries 3 more decimals than token B:
	// price scales by 10^3.
	acc := sqrtPoolAccount(raydiumDiscriminator, 0, 1, 9, 6, 1, 1)

	dp, err := GetRaydiumPrice(true, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 1_000_000_000_000_000, Exp: poolExp}) {
		t.Errorf("expected 1000.0 at exponent %d, got %+v", poolExp, dp.Price)
	}
}

func TestSqrtPoolPrice_ZeroSqrt(t *testing.T) {
	acc := sqrtPoolAccount(whirlpoolDiscriminator, 0, 0, 6, 6, 1, 1)

	_, err := GetWhirlpoolPrice(true, acc, domain.Clock{})
	if !errors.Is(err, ErrZeroPrice) {
		t.Errorf("expected ErrZeroPrice, got %v", err)
	}
}

func TestGetRaydiumPrice_RejectsWhirlpoolDiscriminator(t *testing.T) {
	acc := sqrtPoolAccount(whirlpoolDiscriminator, 0, 1, 6, 6, 1, 1)

	_, err := GetRaydiumPrice(true, acc, domain.Clock{})
	if !errors.Is(err, ErrNotPool) {
		t.Errorf("expected ErrNotPool, got %v", err)
	}
}

func TestGetDlmmPrice_ActiveBinZero(t *testing.T) {
	// Bin 0 means price 1.0 regardless of step.
	acc := dlmmAccount(0, 100, 6, 6, 21, 210)

	dp, err := GetDlmmPrice(true, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 1_000_000_000_000, Exp: poolExp}) {
		t.Errorf("expected 1.0 at exponent %d, got %+v", poolExp, dp.Price)
	}
	if dp.LastUpdatedSlot != 21 || dp.UnixTimestamp != 210 {
		t.Errorf("expected stamp {21 210}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetDlmmPrice_PositiveBin(t *testing.T) {
	// One bin of 100 basis points: price 1.01.
	acc := dlmmAccount(1, 100, 6, 6, 1, 1)

	dp, err := GetDlmmPrice(true, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 1_010_000_000_000, Exp: poolExp}) {
		t.Errorf("expected 1.01 at exponent %d, got %+v", poolExp, dp.Price)
	}
}

func TestGetDlmmPrice_NegativeBin(t *testing.T) {
	acc := dlmmAccount(-1, 100, 6, 6, 1, 1)

	dp, err := GetDlmmPrice(true, acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1/1.01 truncated at exponent 12.
	if dp.Price.Value != 990_099_009_900 {
		t.Errorf("expected truncated mantissa 990099009900, got %d", dp.Price.Value)
	}
}

func TestValidators(t *testing.T) {
	if err := ValidateWhirlpool(nil); !errors.Is(err, ErrNotPool) {
		t.Errorf("nil whirlpool: expected ErrNotPool, got %v", err)
	}
	if err := ValidateDlmm(&accounts.Account{Data: make([]byte, 8)}); !errors.Is(err, ErrNotPool) {
		t.Errorf("short dlmm: expected ErrNotPool, got %v", err)
	}
	if err := ValidateRaydium(sqrtPoolAccount(raydiumDiscriminator, 0, 1, 6, 6, 1, 1)); err != nil {
		t.Errorf("well-formed raydium pool should pass, got %v", err)
	}
	if err := ValidateDlmm(dlmmAccount(0, 10, 6, 6, 1, 1)); err != nil {
		t.Errorf("well-formed dlmm pool should pass, got %v", err)
	}
}
