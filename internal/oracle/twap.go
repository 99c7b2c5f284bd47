package oracle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-price-oracle/internal/domain"
)

// TwapWindowSeconds is how far back observations contribute to an average.
const TwapWindowSeconds = 3600

// ErrNoTwapObservations is returned when the source slot has no
// observations inside the averaging window.
var ErrNoTwapObservations = errors.New("twap: no observations in window")

// twapEligible reports whether a slot of the given kind can feed a
// time-weighted average. Averaging an average is rejected, and placeholder
// kinds never produce observations.
func twapEligible(k Kind) bool {
	return !k.IsDeprecated() && !k.IsTwap()
}

// getTwapPrice folds the source slot's observation history into a single
// average. The mapping entry at index carries the source slot reference;
// the result is stamped with the slot and time of the most recent
// contributing observation, never with the dispatch clock.
func getTwapPrice(
	mappings *domain.OracleMappings,
	twaps *domain.OracleTwaps,
	index int,
	clock domain.Clock,
) (domain.DatedPrice, error) {
	entry, ok := mappings.Entry(index)
	if !ok {
		return domain.DatedPrice{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	source := int(entry.TwapSource)
	sourceEntry, ok := mappings.Entry(source)
	if !ok {
		return domain.DatedPrice{}, fmt.Errorf("%w: source %d", ErrIndexOutOfRange, source)
	}
	sourceKind, err := KindFromWire(sourceEntry.Kind)
	if err != nil {
		return domain.DatedPrice{}, err
	}
	if !twapEligible(sourceKind) {
		return domain.DatedPrice{}, fmt.Errorf("%w: slot %d is %s", ErrBadTwapSource, source, sourceKind)
	}

	observations, _ := twaps.Observations(source)
	cutoff := clock.UnixTimestamp - TwapWindowSeconds

	sum := decimal.Zero
	count := 0
	var newest domain.TwapObservation
	for _, obs := range observations {
		if obs.Slot == 0 && obs.Timestamp == 0 {
			continue
		}
		if int64(obs.Timestamp) < cutoff {
			continue
		}
		sum = sum.Add(obs.Price.Decimal())
		count++
		if obs.Slot > newest.Slot {
			newest = obs
		}
	}
	if count == 0 {
		return domain.DatedPrice{}, fmt.Errorf("%w: source slot %d", ErrNoTwapObservations, source)
	}

	mean := sum.Div(decimal.NewFromInt(int64(count)))
	price, err := domain.PriceFromDecimal(mean, newest.Price.Exp)
	if err != nil {
		return domain.DatedPrice{}, err
	}

	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: newest.Slot,
		UnixTimestamp:   newest.Timestamp,
	}, nil
}

// validateTwapSource is the twap computer's source-consistency check, run
// by the config validator before a twap entry is committed. A twap entry
// carries no price account of its own; its auxiliary reference must point
// at a mapping slot whose kind can feed an average.
func validateTwapSource(mappings *domain.OracleMappings, twapSource uint16) error {
	entry, ok := mappings.Entry(int(twapSource))
	if !ok {
		return fmt.Errorf("%w: twap source %d", ErrIndexOutOfRange, twapSource)
	}
	kind, err := KindFromWire(entry.Kind)
	if err != nil {
		return err
	}
	if !twapEligible(kind) {
		return fmt.Errorf("%w: slot %d is %s", ErrBadTwapSource, twapSource, kind)
	}
	return nil
}
