package ctoken

import (
	"encoding/binary"
	"errors"
	"testing"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

func reserveAccount(mantissa uint64, slot uint64, ts int64) *accounts.Account {
	data := make([]byte, accountLen)
	copy(data[0:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], mantissa)
	binary.LittleEndian.PutUint64(data[16:24], slot)
	binary.LittleEndian.PutUint64(data[24:32], uint64(ts))
	return &accounts.Account{Data: data}
}

func TestGetPrice_WadRateRenormalized(t *testing.T) {
	// 1.05 at WAD scale.
	acc := reserveAccount(1_050_000_000_000_000_000, 33, 1_630_000_000)

	dp, err := GetPrice(acc, domain.Clock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price != (domain.Price{Value: 1_050_000_000_000_000_000, Exp: 18}) {
		t.Errorf("expected 1.05 at exponent 18, got %+v", dp.Price)
	}
	if dp.LastUpdatedSlot != 33 || dp.UnixTimestamp != 1_630_000_000 {
		t.Errorf("expected stamp {33 1630000000}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetPrice_ZeroRate(t *testing.T) {
	_, err := GetPrice(reserveAccount(0, 1, 1), domain.Clock{})
	if !errors.Is(err, ErrZeroRate) {
		t.Errorf("expected ErrZeroRate, got %v", err)
	}
}

func TestValidate_Shape(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrNotReserve) {
		t.Errorf("nil account: expected ErrNotReserve, got %v", err)
	}
	short := &accounts.Account{Data: make([]byte, 8)}
	if err := Validate(short); !errors.Is(err, ErrNotReserve) {
		t.Errorf("short account: expected ErrNotReserve, got %v", err)
	}
}
