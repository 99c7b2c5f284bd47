package feed

import (
	"context"
	"errors"
	"testing"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
)

type stubRPC struct {
	accts map[domain.PubKey]*accounts.Account
	err   error
}

func (c *stubRPC) GetMultipleAccounts(_ context.Context, keys []domain.PubKey) ([]*accounts.Account, error) {
	if c.err != nil {
		return nil, c.err
	}
	result := make([]*accounts.Account, len(keys))
	for i, key := range keys {
		result[i] = c.accts[key]
	}
	return result, nil
}

func (c *stubRPC) GetClock(context.Context) (domain.Clock, error) {
	return domain.Clock{}, c.err
}

func TestSnapshot_SetAndAccount(t *testing.T) {
	snap := NewSnapshot()
	key := domain.PubKey{1}

	if _, ok := snap.Account(key); ok {
		t.Error("expected empty snapshot to miss")
	}

	snap.Set(&accounts.Account{Key: key, Data: []byte{42}})
	acc, ok := snap.Account(key)
	if !ok || len(acc.Data) != 1 || acc.Data[0] != 42 {
		t.Errorf("expected stored account back, got %+v ok=%v", acc, ok)
	}
	if snap.Len() != 1 {
		t.Errorf("expected 1 account, got %d", snap.Len())
	}

	snap.Delete(key)
	if _, ok := snap.Account(key); ok {
		t.Error("expected account gone after delete")
	}
}

func TestSnapshot_SetIgnoresNil(t *testing.T) {
	snap := NewSnapshot()
	snap.Set(nil)
	if snap.Len() != 0 {
		t.Errorf("expected nil set to be a no-op, got %d accounts", snap.Len())
	}
}

func TestSnapshot_Refresh(t *testing.T) {
	keyLive := domain.PubKey{1}
	keyGone := domain.PubKey{2}

	snap := NewSnapshot()
	snap.Set(&accounts.Account{Key: keyGone, Data: []byte{9}})

	client := &stubRPC{accts: map[domain.PubKey]*accounts.Account{
		keyLive: {Key: keyLive, Data: []byte{1, 2, 3}},
	}}
	if err := snap.Refresh(context.Background(), client, []domain.PubKey{keyLive, keyGone}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := snap.Account(keyLive); !ok {
		t.Error("expected fetched account to be merged")
	}
	// Accounts missing on chain are evicted, not kept stale.
	if _, ok := snap.Account(keyGone); ok {
		t.Error("expected missing account to be evicted")
	}
}

func TestSnapshot_RefreshPropagatesError(t *testing.T) {
	rpcErr := errors.New("rpc down")
	snap := NewSnapshot()
	snap.Set(&accounts.Account{Key: domain.PubKey{1}})

	err := snap.Refresh(context.Background(), &stubRPC{err: rpcErr}, []domain.PubKey{{1}})
	if !errors.Is(err, rpcErr) {
		t.Errorf("expected rpc error, got %v", err)
	}
	if snap.Len() != 1 {
		t.Error("failed refresh must leave the snapshot untouched")
	}
}
