package oracle

import (
	"fmt"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/adapters/clmm"
	"solana-price-oracle/internal/adapters/pyth"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/oracle/lp"
)

// ValidateMapping decides whether a proposed mapping configuration is
// admissible. It runs exactly once, before the administration path commits
// the entry; the dispatch path assumes every committed entry passed it.
//
// Several kinds currently accept any configuration. That is a known gap
// carried over deliberately, not an oversight: tightening those checks is a
// behavioral change for already-deployed configurations.
//
// Validating a deprecated placeholder kind panics: nothing in a well-formed
// system should ever propose one.
func ValidateMapping(
	mappings *domain.OracleMappings,
	kind Kind,
	priceAccount *accounts.Account,
	twapSource uint16,
	generic [domain.GenericDataSize]byte,
) error {
	switch kind {
	case Pyth, PythEMA:
		return requireAccount(kind, priceAccount, pyth.ValidatePriceAccount)
	case PythPull, PythPullEMA:
		return requireAccount(kind, priceAccount, pyth.ValidatePullAccount)
	case SwitchboardV2:
		return nil // TODO at least check account ownership?
	case CToken:
		return nil // TODO how shall we validate the reserve account?
	case SplStake, MsolStake:
		return nil
	case KVault, KVaultToTokenA, KVaultToTokenB:
		return nil // TODO should validate ownership of the vault account
	case JupiterLpFetch, JupiterLpCompute, JupiterLpFromStore:
		return requireAccount(kind, priceAccount, lp.ValidatePool)
	case OrcaWhirlpoolAtoB, OrcaWhirlpoolBtoA:
		return requireAccount(kind, priceAccount, clmm.ValidateWhirlpool)
	case RaydiumClmmAtoB, RaydiumClmmBtoA:
		return requireAccount(kind, priceAccount, clmm.ValidateRaydium)
	case MeteoraDlmmAtoB, MeteoraDlmmBtoA:
		return requireAccount(kind, priceAccount, clmm.ValidateDlmm)
	case Twap:
		if priceAccount != nil {
			return fmt.Errorf("%w: twap entries derive from the source slot", ErrAccountNotExpected)
		}
		return validateTwapSource(mappings, twapSource)
	case FixedPrice:
		if priceAccount != nil {
			return fmt.Errorf("%w: fixed price is fully defined by the payload", ErrAccountNotExpected)
		}
		if _, err := domain.DecodePricePayload(generic); err != nil {
			return err
		}
		return nil
	case DeprecatedPlaceholder1, DeprecatedPlaceholder3:
		panic(fmt.Sprintf("validation of deprecated placeholder kind %d", uint8(kind)))
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
}

// requireAccount guards the kinds whose validators parse account data: the
// mapping must supply an account before any shape check can run.
func requireAccount(kind Kind, acc *accounts.Account, validate func(*accounts.Account) error) error {
	if acc == nil {
		return fmt.Errorf("%w: %s", ErrAccountRequired, kind)
	}
	return validate(acc)
}
