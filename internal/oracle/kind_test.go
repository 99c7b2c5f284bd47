package oracle

import (
	"errors"
	"strings"
	"testing"
)

func TestKindFromWire_AcceptsAllShippedValues(t *testing.T) {
	for v := uint8(0); v <= uint8(FixedPrice); v++ {
		kind, err := KindFromWire(v)
		if err != nil {
			t.Errorf("value %d: unexpected error: %v", v, err)
		}
		if uint8(kind) != v {
			t.Errorf("value %d: discriminant changed to %d", v, uint8(kind))
		}
	}
}

func TestKindFromWire_RejectsUnknown(t *testing.T) {
	for _, v := range []uint8{24, 100, 255} {
		_, err := KindFromWire(v)
		if !errors.Is(err, ErrUnknownKind) {
			t.Errorf("value %d: expected ErrUnknownKind, got %v", v, err)
		}
	}
}

func TestKindString_NoLiveKindIsAnonymous(t *testing.T) {
	for v := uint8(0); v <= uint8(FixedPrice); v++ {
		kind := Kind(v)
		if strings.HasPrefix(kind.String(), "Kind(") {
			t.Errorf("kind %d has no name", v)
		}
	}
}

func TestRefreshBudget_PositiveForLiveKinds(t *testing.T) {
	for v := uint8(0); v <= uint8(FixedPrice); v++ {
		kind := Kind(v)
		if kind.IsDeprecated() {
			continue
		}
		if kind.RefreshBudget() == 0 {
			t.Errorf("kind %s has zero budget", kind)
		}
	}
}

func TestRefreshBudget_SelectedValues(t *testing.T) {
	cases := map[Kind]uint32{
		FixedPrice:         10_000,
		PythPull:           20_000,
		Pyth:               30_000,
		CToken:             130_000,
		KVault:             120_000,
		JupiterLpFetch:     40_000,
		Twap:               30_000,
		OrcaWhirlpoolAtoB:  25_000,
		MeteoraDlmmBtoA:    30_000,
		JupiterLpFromStore: 120_000,
	}
	for kind, want := range cases {
		if got := kind.RefreshBudget(); got != want {
			t.Errorf("%s: expected budget %d, got %d", kind, want, got)
		}
	}
}

func TestRefreshBudget_PanicsOnDeprecated(t *testing.T) {
	for _, kind := range []Kind{DeprecatedPlaceholder1, DeprecatedPlaceholder3} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", kind)
				}
			}()
			kind.RefreshBudget()
		}()
	}
}

func TestIsTwap_OnlyTwapKind(t *testing.T) {
	for v := uint8(0); v <= uint8(FixedPrice); v++ {
		kind := Kind(v)
		if kind.IsTwap() != (kind == Twap) {
			t.Errorf("kind %s: IsTwap mismatch", kind)
		}
	}
}
