package domain

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxPriceExponent bounds the decimal exponent of a fixed-point price.
// Token amounts on chain never carry more than 18 decimals.
const MaxPriceExponent = 18

// ErrInvalidPricePayload is returned when a generic payload does not hold a
// well-formed fixed-point price.
var ErrInvalidPricePayload = errors.New("invalid fixed price payload")

// Price is a fixed-point value: Value * 10^-Exp.
// The zero value (0 with exponent 0) is a valid "no price".
type Price struct {
	Value uint64
	Exp   uint64
}

// Decimal converts the fixed-point price to a decimal value.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p.Value), -int32(p.Exp))
}

// IsZero reports whether the price is the zero value.
func (p Price) IsZero() bool {
	return p.Value == 0
}

func (p Price) String() string {
	return p.Decimal().String()
}

// DecodePricePayload decodes a fixed-point price from a mapping entry's
// 20-byte generic payload: value u64 LE, exponent u64 LE, 4 reserved bytes
// that must be zero. Returns ErrInvalidPricePayload when the exponent is out
// of range or the reserved bytes are set.
func DecodePricePayload(payload [GenericDataSize]byte) (Price, error) {
	value := binary.LittleEndian.Uint64(payload[0:8])
	exp := binary.LittleEndian.Uint64(payload[8:16])
	if exp > MaxPriceExponent {
		return Price{}, fmt.Errorf("%w: exponent %d out of range", ErrInvalidPricePayload, exp)
	}
	for _, b := range payload[16:] {
		if b != 0 {
			return Price{}, fmt.Errorf("%w: reserved bytes not zero", ErrInvalidPricePayload)
		}
	}
	return Price{Value: value, Exp: exp}, nil
}

// EncodePricePayload encodes a price into the 20-byte generic payload layout
// used by fixed-price mapping entries.
func EncodePricePayload(p Price) [GenericDataSize]byte {
	var payload [GenericDataSize]byte
	binary.LittleEndian.PutUint64(payload[0:8], p.Value)
	binary.LittleEndian.PutUint64(payload[8:16], p.Exp)
	return payload
}

// ErrUnrepresentablePrice is returned when a computed value cannot be
// rendered as a fixed-point price.
var ErrUnrepresentablePrice = errors.New("price not representable as fixed point")

// PriceFromDecimal renders a positive decimal value as a fixed-point price
// at the given exponent, truncating extra precision.
func PriceFromDecimal(d decimal.Decimal, exp uint64) (Price, error) {
	if exp > MaxPriceExponent {
		return Price{}, fmt.Errorf("%w: exponent %d", ErrUnrepresentablePrice, exp)
	}
	v := d.Shift(int32(exp)).Truncate(0)
	if !v.IsPositive() || !v.BigInt().IsUint64() {
		return Price{}, fmt.Errorf("%w: %s", ErrUnrepresentablePrice, d)
	}
	return Price{Value: v.BigInt().Uint64(), Exp: exp}, nil
}

// DatedPrice pairs a price with the slot and unix time of the underlying
// observation. The slot and timestamp reflect when the source data was
// produced, never when the aggregation ran, so callers can judge staleness.
type DatedPrice struct {
	Price           Price
	LastUpdatedSlot uint64
	UnixTimestamp   uint64
	Generic         [16]byte
}

// Clock is the single authoritative time source for one dispatch call.
// Every adapter invoked within the call observes the same clock.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}
