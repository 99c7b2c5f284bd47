// Package accounts models the opaque account handles a caller materializes
// before invoking the dispatch core. The core never fetches data itself; it
// only reads the snapshots carried by these handles.
package accounts

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-price-oracle/internal/domain"
)

var (
	// ErrNoMoreAccounts is returned when an adapter requests more auxiliary
	// accounts than the caller supplied.
	ErrNoMoreAccounts = errors.New("no more accounts in stream")

	// ErrInvalidKey is returned when a key string does not decode to 32 bytes.
	ErrInvalidKey = errors.New("invalid account key")
)

// ParseKey decodes a base58 key string into a raw 32-byte key.
func ParseKey(s string) (domain.PubKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return domain.PubKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 32 {
		return domain.PubKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(raw))
	}
	var k domain.PubKey
	copy(k[:], raw)
	return k, nil
}

// KeyString renders a raw key in its base58 form.
func KeyString(k domain.PubKey) string {
	return base58.Encode(k[:])
}

// IsOnCurve reports whether the key is a valid ed25519 curve point.
// Program-derived addresses are intentionally off curve; a mapping that
// configures a wallet-style key where a derived address is expected can be
// caught with this check.
func IsOnCurve(k domain.PubKey) bool {
	_, err := new(edwards25519.Point).SetBytes(k[:])
	return err == nil
}

// Account is a materialized snapshot of one on-chain account.
type Account struct {
	Key      domain.PubKey
	Owner    domain.PubKey
	Lamports uint64
	Data     []byte
}

// Iterator walks the ordered auxiliary account stream of a dispatch call.
// Adapters draw exactly the accounts their kind declares needing; whatever
// remains after the top-level call is a caller error.
type Iterator struct {
	accounts []*Account
	pos      int
}

// NewIterator wraps an ordered auxiliary account stream.
func NewIterator(accts []*Account) *Iterator {
	return &Iterator{accounts: accts}
}

// Next returns the next account in the stream.
func (it *Iterator) Next() (*Account, error) {
	if it.pos >= len(it.accounts) {
		return nil, ErrNoMoreAccounts
	}
	a := it.accounts[it.pos]
	it.pos++
	return a, nil
}

// Remaining reports how many accounts have not been consumed.
func (it *Iterator) Remaining() int {
	return len(it.accounts) - it.pos
}
