package oracle

import (
	"errors"
	"testing"

	"solana-price-oracle/internal/domain"
)

// twapFixture wires slot 1 as a twap over slot 0 (a pyth entry).
func twapFixture() (*domain.OracleMappings, *domain.OracleTwaps) {
	mappings := &domain.OracleMappings{}
	mappings.Entries[0] = domain.MappingEntry{
		PriceAccount: domain.PubKey{1},
		Kind:         uint8(Pyth),
	}
	mappings.Entries[1] = domain.MappingEntry{
		Kind:       uint8(Twap),
		TwapSource: 0,
	}
	return mappings, &domain.OracleTwaps{}
}

func TestGetTwapPrice_AveragesWindowObservations(t *testing.T) {
	mappings, twaps := twapFixture()
	twaps.Append(0, domain.TwapObservation{Price: domain.Price{Value: 100, Exp: 2}, Slot: 10, Timestamp: 1000})
	twaps.Append(0, domain.TwapObservation{Price: domain.Price{Value: 200, Exp: 2}, Slot: 20, Timestamp: 2000})

	clock := domain.Clock{Slot: 25, UnixTimestamp: 2100}
	dp, err := getTwapPrice(mappings, twaps, 1, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mean of 1.00 and 2.00 at exponent 2 is 150e-2.
	if dp.Price.Value != 150 || dp.Price.Exp != 2 {
		t.Errorf("expected {150 2}, got %+v", dp.Price)
	}
	// Stamped with the newest contributing observation, not the clock.
	if dp.LastUpdatedSlot != 20 || dp.UnixTimestamp != 2000 {
		t.Errorf("expected stamp {20 2000}, got {%d %d}", dp.LastUpdatedSlot, dp.UnixTimestamp)
	}
}

func TestGetTwapPrice_SkipsObservationsOutsideWindow(t *testing.T) {
	mappings, twaps := twapFixture()
	// One observation just inside the window, one well before it.
	twaps.Append(0, domain.TwapObservation{Price: domain.Price{Value: 900, Exp: 2}, Slot: 5, Timestamp: 100})
	twaps.Append(0, domain.TwapObservation{Price: domain.Price{Value: 300, Exp: 2}, Slot: 50, Timestamp: 5000})

	clock := domain.Clock{Slot: 60, UnixTimestamp: 5000 + TwapWindowSeconds}
	dp, err := getTwapPrice(mappings, twaps, 1, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dp.Price.Value != 300 {
		t.Errorf("stale observation contributed: got value %d", dp.Price.Value)
	}
}

func TestGetTwapPrice_EmptyBuffer(t *testing.T) {
	mappings, twaps := twapFixture()

	_, err := getTwapPrice(mappings, twaps, 1, domain.Clock{UnixTimestamp: 10000})
	if !errors.Is(err, ErrNoTwapObservations) {
		t.Errorf("expected ErrNoTwapObservations, got %v", err)
	}
}

func TestGetTwapPrice_RejectsTwapSource(t *testing.T) {
	mappings, twaps := twapFixture()
	// Retarget the twap entry at another twap entry.
	mappings.Entries[2] = domain.MappingEntry{Kind: uint8(Twap), TwapSource: 0}
	mappings.Entries[1].TwapSource = 2

	_, err := getTwapPrice(mappings, twaps, 1, domain.Clock{UnixTimestamp: 10000})
	if !errors.Is(err, ErrBadTwapSource) {
		t.Errorf("expected ErrBadTwapSource, got %v", err)
	}
}

func TestGetTwapPrice_RejectsDeprecatedSource(t *testing.T) {
	mappings, twaps := twapFixture()
	mappings.Entries[0].Kind = uint8(DeprecatedPlaceholder1)

	_, err := getTwapPrice(mappings, twaps, 1, domain.Clock{UnixTimestamp: 10000})
	if !errors.Is(err, ErrBadTwapSource) {
		t.Errorf("expected ErrBadTwapSource, got %v", err)
	}
}

func TestValidateTwapSource_OutOfRange(t *testing.T) {
	mappings := &domain.OracleMappings{}

	err := validateTwapSource(mappings, domain.MaxEntries)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestValidateTwapSource_EligibleSource(t *testing.T) {
	mappings, _ := twapFixture()

	if err := validateTwapSource(mappings, 0); err != nil {
		t.Errorf("pyth source should be eligible, got %v", err)
	}
}
