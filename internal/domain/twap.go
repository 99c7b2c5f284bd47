package domain

import "sync"

// TwapNbObservations is the depth of the per-slot observation ring buffer.
const TwapNbObservations = 64

// TwapObservation is one raw price observation recorded for a twap source.
type TwapObservation struct {
	Price     Price
	Slot      uint64
	Timestamp uint64
}

// TwapBuffer is a rolling history of observations for one mapping slot.
// CurrIdx points at the most recently written observation; the buffer wraps.
type TwapBuffer struct {
	Observations [TwapNbObservations]TwapObservation
	CurrIdx      uint16
}

// Append records an observation, overwriting the oldest entry once full.
func (b *TwapBuffer) Append(obs TwapObservation) {
	if b.Observations[b.CurrIdx].Slot != 0 || b.Observations[b.CurrIdx].Timestamp != 0 {
		b.CurrIdx = (b.CurrIdx + 1) % TwapNbObservations
	}
	b.Observations[b.CurrIdx] = obs
}

// Latest returns the most recent observation, or false when the buffer is
// empty.
func (b *TwapBuffer) Latest() (TwapObservation, bool) {
	obs := b.Observations[b.CurrIdx]
	if obs.Slot == 0 && obs.Timestamp == 0 {
		return TwapObservation{}, false
	}
	return obs, true
}

// OracleTwaps holds the observation history for every mapping slot. It is
// written by the refresh path and only read by the twap computer. The lock
// guarantees no buffer is ever observed mid-append.
type OracleTwaps struct {
	mu      sync.RWMutex
	buffers [MaxEntries]TwapBuffer
}

// Append records an observation for a slot. Returns false when out of
// range.
func (t *OracleTwaps) Append(index int, obs TwapObservation) bool {
	if index < 0 || index >= MaxEntries {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffers[index].Append(obs)
	return true
}

// Observations returns a copy of a slot's observation ring, or false when
// out of range.
func (t *OracleTwaps) Observations(index int) ([TwapNbObservations]TwapObservation, bool) {
	if index < 0 || index >= MaxEntries {
		return [TwapNbObservations]TwapObservation{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buffers[index].Observations, true
}

// Latest returns a slot's most recent observation, or false when the slot
// is out of range or holds none.
func (t *OracleTwaps) Latest(index int) (TwapObservation, bool) {
	if index < 0 || index >= MaxEntries {
		return TwapObservation{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buffers[index].Latest()
}
