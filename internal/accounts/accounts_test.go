package accounts

import (
	"errors"
	"testing"

	"solana-price-oracle/internal/domain"
)

func TestParseKey_RoundTrip(t *testing.T) {
	var key domain.PubKey
	for i := range key {
		key[i] = byte(i)
	}

	parsed, err := ParseKey(KeyString(key))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != key {
		t.Errorf("round trip mismatch: %v != %v", parsed, key)
	}
}

func TestParseKey_RejectsBadLength(t *testing.T) {
	// "abc" decodes to fewer than 32 bytes.
	_, err := ParseKey("abc")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestParseKey_RejectsBadAlphabet(t *testing.T) {
	// 0, O, I and l are not part of the base58 alphabet.
	_, err := ParseKey("0OIl")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestIsOnCurve(t *testing.T) {
	// The ed25519 base point is on curve by definition.
	base := domain.PubKey{
		0x58, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	}
	if !IsOnCurve(base) {
		t.Error("base point should be on curve")
	}
}

func TestIterator_DrainsInOrder(t *testing.T) {
	a := &Account{Key: domain.PubKey{1}}
	b := &Account{Key: domain.PubKey{2}}
	it := NewIterator([]*Account{a, b})

	if it.Remaining() != 2 {
		t.Errorf("expected 2 remaining, got %d", it.Remaining())
	}

	first, err := it.Next()
	if err != nil || first != a {
		t.Errorf("expected first account, got %v err=%v", first, err)
	}
	second, err := it.Next()
	if err != nil || second != b {
		t.Errorf("expected second account, got %v err=%v", second, err)
	}
	if it.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", it.Remaining())
	}
}

func TestIterator_NextPastEnd(t *testing.T) {
	it := NewIterator(nil)

	_, err := it.Next()
	if !errors.Is(err, ErrNoMoreAccounts) {
		t.Errorf("expected ErrNoMoreAccounts, got %v", err)
	}
}
