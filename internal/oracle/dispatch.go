package oracle

import (
	"fmt"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/adapters/clmm"
	"solana-price-oracle/internal/adapters/ctoken"
	"solana-price-oracle/internal/adapters/kvault"
	"solana-price-oracle/internal/adapters/pyth"
	"solana-price-oracle/internal/adapters/stake"
	"solana-price-oracle/internal/adapters/switchboard"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/oracle/lp"
)

// GetPrice resolves one mapping slot into a dated price.
//
// baseAccount must already have been checked against the oracle mapping.
// Kinds that need more accounts draw them from extra; whatever the overall
// call leaves in the stream is checked once at the top level with
// CheckNoExtraAccounts, not here. clock is the single time source for the
// whole call. The three shared stores are read-only for the duration;
// writing results back is the caller's job and happens strictly after this
// returns.
//
// Dispatching a deprecated placeholder kind panics: a placeholder in a
// mapping means the table is corrupted, and continuing would price it.
func GetPrice(
	kind Kind,
	baseAccount *accounts.Account,
	extra *accounts.Iterator,
	clock domain.Clock,
	twaps *domain.OracleTwaps,
	mappings *domain.OracleMappings,
	prices *domain.OraclePrices,
	pricesKey domain.PubKey,
	index int,
) (domain.DatedPrice, error) {
	// A pre-epoch clock means the caller's time source is corrupted; every
	// price resolved under it would carry a garbage timestamp.
	if clock.UnixTimestamp < 0 {
		panic(fmt.Sprintf("negative clock timestamp %d at slot %d", clock.UnixTimestamp, index))
	}
	switch kind {
	case Pyth:
		return wrapKind(kind)(pyth.GetPrice(baseAccount, clock))
	case PythEMA:
		return wrapKind(kind)(pyth.GetEmaPrice(baseAccount, clock))
	case PythPull:
		return wrapKind(kind)(pyth.GetPullPrice(baseAccount, clock))
	case PythPullEMA:
		return wrapKind(kind)(pyth.GetPullEmaPrice(baseAccount, clock))
	case SwitchboardV2:
		return wrapKind(kind)(switchboard.GetPrice(baseAccount))
	case CToken:
		return wrapKind(kind)(ctoken.GetPrice(baseAccount, clock))
	case SplStake:
		return wrapKind(kind)(stake.GetSplStakeRate(baseAccount, clock))
	case MsolStake:
		return wrapKind(kind)(stake.GetMsolStakeRate(baseAccount, clock))
	case KVault:
		return wrapKind(kind)(kvault.GetSharePrice(baseAccount, clock, extra))
	case KVaultToTokenA:
		return wrapKind(kind)(kvault.GetTokenPerShare(baseAccount, clock, kvault.TokenA))
	case KVaultToTokenB:
		return wrapKind(kind)(kvault.GetTokenPerShare(baseAccount, clock, kvault.TokenB))
	case OrcaWhirlpoolAtoB:
		return wrapKind(kind)(clmm.GetWhirlpoolPrice(true, baseAccount, clock))
	case OrcaWhirlpoolBtoA:
		return wrapKind(kind)(clmm.GetWhirlpoolPrice(false, baseAccount, clock))
	case RaydiumClmmAtoB:
		return wrapKind(kind)(clmm.GetRaydiumPrice(true, baseAccount, clock))
	case RaydiumClmmBtoA:
		return wrapKind(kind)(clmm.GetRaydiumPrice(false, baseAccount, clock))
	case MeteoraDlmmAtoB:
		return wrapKind(kind)(clmm.GetDlmmPrice(true, baseAccount, clock))
	case MeteoraDlmmBtoA:
		return wrapKind(kind)(clmm.GetDlmmPrice(false, baseAccount, clock))
	case JupiterLpFetch:
		return wrapKind(kind)(lp.GetPriceNoRecompute(baseAccount, clock))
	case JupiterLpCompute:
		return wrapKind(kind)(lp.GetPriceRecomputed(baseAccount, clock, extra))
	case JupiterLpFromStore:
		return wrapKind(kind)(lp.GetPriceRecomputedFromStore(index, baseAccount, clock, pricesKey, prices, mappings))
	case Twap:
		return wrapKind(kind)(getTwapPrice(mappings, twaps, index, clock))
	case FixedPrice:
		return fixedPrice(mappings, index, clock)
	case DeprecatedPlaceholder1, DeprecatedPlaceholder3:
		panic(fmt.Sprintf("dispatch of deprecated placeholder kind %d at slot %d", uint8(kind), index))
	default:
		return domain.DatedPrice{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
}

// fixedPrice decodes the literal constant from the mapping entry's generic
// payload. A literal price is definitionally always fresh, so it carries
// the dispatch clock as its observation time.
func fixedPrice(mappings *domain.OracleMappings, index int, clock domain.Clock) (domain.DatedPrice, error) {
	entry, ok := mappings.Entry(index)
	if !ok {
		return domain.DatedPrice{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	price, err := domain.DecodePricePayload(entry.Generic)
	if err != nil {
		return domain.DatedPrice{}, fmt.Errorf("%s: %w", FixedPrice, err)
	}
	return domain.DatedPrice{
		Price:           price,
		LastUpdatedSlot: clock.Slot,
		UnixTimestamp:   uint64(clock.UnixTimestamp),
	}, nil
}

// wrapKind tags adapter failures with the failing kind's identity before
// re-raising them. Failures are never swallowed or retried here.
func wrapKind(kind Kind) func(domain.DatedPrice, error) (domain.DatedPrice, error) {
	return func(dp domain.DatedPrice, err error) (domain.DatedPrice, error) {
		if err != nil {
			return domain.DatedPrice{}, fmt.Errorf("%s: %w", kind, err)
		}
		return dp, nil
	}
}
