package domain

import "sync"

// Shared store dimensions. MaxEntries is part of the on-chain layout and
// cannot change without a migration.
const (
	MaxEntries      = 512
	GenericDataSize = 20
)

// PubKey is a raw 32-byte account key. The zero value means "no account".
type PubKey [32]byte

// IsZero reports whether the key is unset.
func (k PubKey) IsZero() bool {
	return k == PubKey{}
}

// MappingEntry binds one price slot to its source configuration.
type MappingEntry struct {
	// PriceAccount is the primary external data account, zero if the kind
	// needs none (fixed price, twap).
	PriceAccount PubKey
	// Kind selects the source family resolving this slot. Stored as the raw
	// wire discriminant; interpretation belongs to the oracle package.
	Kind uint8
	// TwapSource points at the mapping slot whose observations feed a twap
	// entry. Only meaningful for twap kinds.
	TwapSource uint16
	// Generic is inline configuration or literal constant data.
	Generic [GenericDataSize]byte
}

// IsConfigured reports whether the entry was ever administered. An all-zero
// entry reads as kind 0 with no account, which is indistinguishable from a
// real zero-account kind-0 slot only if its payload is also empty.
func (e *MappingEntry) IsConfigured() bool {
	return !e.PriceAccount.IsZero() || e.Kind != 0 || e.Generic != [GenericDataSize]byte{}
}

// OracleMappings is the ordered slot-indexed configuration table. It is
// administered out of band and read-only to the dispatch core.
type OracleMappings struct {
	Entries [MaxEntries]MappingEntry
}

// Entry returns the mapping entry at index, or false when out of range.
func (m *OracleMappings) Entry(index int) (*MappingEntry, bool) {
	if index < 0 || index >= MaxEntries {
		return nil, false
	}
	return &m.Entries[index], true
}

// OraclePrices holds the most recently resolved price per mapping slot.
// Composite kinds read it to resolve dependent prices; only the refresh
// path writes it, strictly after dispatch returns. The lock guarantees no
// entry is ever observed mid-update, so a reader never sees a price paired
// with another update's slot or timestamp.
type OraclePrices struct {
	mu     sync.RWMutex
	prices [MaxEntries]DatedPrice
}

// At returns the resolved price at index, or false when out of range.
func (p *OraclePrices) At(index int) (DatedPrice, bool) {
	if index < 0 || index >= MaxEntries {
		return DatedPrice{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prices[index], true
}

// Set stores the resolved price for a slot. Returns false when out of
// range.
func (p *OraclePrices) Set(index int, dp DatedPrice) bool {
	if index < 0 || index >= MaxEntries {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[index] = dp
	return true
}
