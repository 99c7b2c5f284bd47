package feed

import (
	"context"
	"sync"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/observability"
	"solana-price-oracle/internal/refresh"
)

// Snapshot is a thread-safe local view of on-chain accounts. It is filled by
// an initial bulk fetch and kept fresh by websocket notifications. Reads
// return the stored pointer; accounts are replaced wholesale on update, never
// mutated in place.
type Snapshot struct {
	mu    sync.RWMutex
	accts map[domain.PubKey]*accounts.Account
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{accts: make(map[domain.PubKey]*accounts.Account)}
}

var _ refresh.AccountSource = (*Snapshot)(nil)

// Account returns the stored account for key, if present.
func (s *Snapshot) Account(key domain.PubKey) (*accounts.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accts[key]
	return acc, ok
}

// Set stores or replaces one account.
func (s *Snapshot) Set(acc *accounts.Account) {
	if acc == nil {
		return
	}
	s.mu.Lock()
	s.accts[acc.Key] = acc
	size := len(s.accts)
	s.mu.Unlock()

	observability.RecordFeedUpdate(size)
}

// Delete removes one account, typically after the chain reports it closed.
func (s *Snapshot) Delete(key domain.PubKey) {
	s.mu.Lock()
	delete(s.accts, key)
	size := len(s.accts)
	s.mu.Unlock()

	observability.DefaultMetrics.AccountsInSnapshot.Set(float64(size))
}

// Len returns the number of accounts held.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accts)
}

// Refresh bulk-fetches the given keys and merges them into the snapshot.
// Keys that do not exist on chain are removed so a stale copy cannot
// masquerade as live data.
func (s *Snapshot) Refresh(ctx context.Context, client RPCClient, keys []domain.PubKey) error {
	fetched, err := client.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return err
	}
	for i, acc := range fetched {
		if acc == nil {
			s.Delete(keys[i])
			continue
		}
		s.Set(acc)
	}
	return nil
}
