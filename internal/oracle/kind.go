// Package oracle is the dispatch and validation core of the price engine.
// It routes a mapping slot's kind to the adapter or composite computer that
// resolves it, and gatekeeps what may be committed to the mapping table.
package oracle

import "fmt"

// Kind identifies the source family or derivation rule resolving a mapping
// slot. The numeric discriminant is part of the persisted wire format:
// values must never be renumbered or reused, and retired kinds keep their
// slot as permanent placeholders so external consumers keyed on the raw
// value keep decoding.
type Kind uint8

const (
	// Pyth is a push-based Pyth price account.
	Pyth Kind = 0
	// DeprecatedPlaceholder1 is a retired wire value. Never constructible
	// through normal paths.
	DeprecatedPlaceholder1 Kind = 1
	// SwitchboardV2 is a Switchboard v2 aggregator account.
	SwitchboardV2 Kind = 2
	// DeprecatedPlaceholder3 is a retired wire value. Never constructible
	// through normal paths.
	DeprecatedPlaceholder3 Kind = 3
	// CToken is a lending-market collateral token exchange rate.
	CToken Kind = 4
	// SplStake is an SPL stake pool rate in SOL. Reference only: the rate
	// updates once per epoch, ignores staking fees, and unstaking is not
	// immediate, so it must not be used directly for valuation.
	SplStake Kind = 5
	// KVault is a vault share token priced by its vault program.
	KVault Kind = 6
	// PythEMA is the exponential moving average of a push-based Pyth account.
	PythEMA Kind = 7
	// MsolStake is the mSOL stake pool rate. Same reference-only caveats as
	// SplStake.
	MsolStake Kind = 8
	// KVaultToTokenA is the amount of underlying token A per vault share.
	KVaultToTokenA Kind = 9
	// KVaultToTokenB is the amount of underlying token B per vault share.
	KVaultToTokenB Kind = 10
	// JupiterLpFetch reads the perp pool's own reported LP token price with
	// no recomputation. Reference only: the reported value can lag.
	JupiterLpFetch Kind = 11
	// Twap is a time-weighted average over another slot's observation
	// history.
	Twap Kind = 12
	// OrcaWhirlpoolAtoB is a Whirlpool concentrated-liquidity price, A to B.
	OrcaWhirlpoolAtoB Kind = 13
	// OrcaWhirlpoolBtoA is a Whirlpool concentrated-liquidity price, B to A.
	OrcaWhirlpoolBtoA Kind = 14
	// RaydiumClmmAtoB is a Raydium CLMM pool price, A to B.
	RaydiumClmmAtoB Kind = 15
	// RaydiumClmmBtoA is a Raydium CLMM pool price, B to A.
	RaydiumClmmBtoA Kind = 16
	// JupiterLpCompute recomputes the LP token price from pool reserves and
	// externally fetched underlying feeds.
	JupiterLpCompute Kind = 17
	// MeteoraDlmmAtoB is a Meteora DLMM bin price, A to B.
	MeteoraDlmmAtoB Kind = 18
	// MeteoraDlmmBtoA is a Meteora DLMM bin price, B to A.
	MeteoraDlmmBtoA Kind = 19
	// JupiterLpFromStore recomputes the LP token price from pool reserves
	// using underlying prices already resolved in the shared price store.
	JupiterLpFromStore Kind = 20
	// PythPull is a pull-based Pyth price update account.
	PythPull Kind = 21
	// PythPullEMA is the EMA of a pull-based Pyth price update account.
	PythPullEMA Kind = 22
	// FixedPrice is a literal constant price stored in the mapping entry's
	// generic payload.
	FixedPrice Kind = 23
)

// KindFromWire converts a raw mapping discriminant into a Kind. Unknown
// values are rejected; deprecated placeholders are accepted here since they
// exist on the wire, and fail later if anything tries to use them.
func KindFromWire(v uint8) (Kind, error) {
	if v > uint8(FixedPrice) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, v)
	}
	return Kind(v), nil
}

func (k Kind) String() string {
	switch k {
	case Pyth:
		return "Pyth"
	case DeprecatedPlaceholder1:
		return "DeprecatedPlaceholder1"
	case SwitchboardV2:
		return "SwitchboardV2"
	case DeprecatedPlaceholder3:
		return "DeprecatedPlaceholder3"
	case CToken:
		return "CToken"
	case SplStake:
		return "SplStake"
	case KVault:
		return "KVault"
	case PythEMA:
		return "PythEMA"
	case MsolStake:
		return "MsolStake"
	case KVaultToTokenA:
		return "KVaultToTokenA"
	case KVaultToTokenB:
		return "KVaultToTokenB"
	case JupiterLpFetch:
		return "JupiterLpFetch"
	case Twap:
		return "Twap"
	case OrcaWhirlpoolAtoB:
		return "OrcaWhirlpoolAtoB"
	case OrcaWhirlpoolBtoA:
		return "OrcaWhirlpoolBtoA"
	case RaydiumClmmAtoB:
		return "RaydiumClmmAtoB"
	case RaydiumClmmBtoA:
		return "RaydiumClmmBtoA"
	case JupiterLpCompute:
		return "JupiterLpCompute"
	case MeteoraDlmmAtoB:
		return "MeteoraDlmmAtoB"
	case MeteoraDlmmBtoA:
		return "MeteoraDlmmBtoA"
	case JupiterLpFromStore:
		return "JupiterLpFromStore"
	case PythPull:
		return "PythPull"
	case PythPullEMA:
		return "PythPullEMA"
	case FixedPrice:
		return "FixedPrice"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsTwap reports whether the kind is the time-weighted-average kind.
func (k Kind) IsTwap() bool {
	return k == Twap
}

// IsDeprecated reports whether the kind is a retired placeholder.
func (k Kind) IsDeprecated() bool {
	return k == DeprecatedPlaceholder1 || k == DeprecatedPlaceholder3
}

// RefreshBudget returns the maximum compute units resolving the kind may
// consume. Callers sum it across a planned batch to admission-control the
// batch against a global ceiling before dispatching.
//
// Panics on deprecated placeholder kinds: asking for the budget of a
// placeholder means a corrupted mapping entry was constructed, and
// continuing would price it.
func (k Kind) RefreshBudget() uint32 {
	switch k {
	case FixedPrice:
		return 10_000
	case PythPull, PythPullEMA:
		return 20_000
	case Pyth, SwitchboardV2, PythEMA:
		return 30_000
	case CToken:
		return 130_000
	case SplStake, MsolStake:
		return 20_000
	case KVault:
		return 120_000
	case KVaultToTokenA, KVaultToTokenB:
		return 100_000
	case JupiterLpFetch:
		return 40_000
	case Twap:
		return 30_000
	case OrcaWhirlpoolAtoB, OrcaWhirlpoolBtoA, RaydiumClmmAtoB, RaydiumClmmBtoA:
		return 25_000
	case MeteoraDlmmAtoB, MeteoraDlmmBtoA:
		return 30_000
	case JupiterLpCompute, JupiterLpFromStore:
		return 120_000
	case DeprecatedPlaceholder1, DeprecatedPlaceholder3:
		panic(fmt.Sprintf("refresh budget requested for deprecated placeholder kind %d", uint8(k)))
	default:
		panic(fmt.Sprintf("refresh budget requested for unknown kind %d", uint8(k)))
	}
}
