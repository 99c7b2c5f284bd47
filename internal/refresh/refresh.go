// Package refresh drives batches of price refreshes through the dispatch
// core: it admission-controls a planned batch against the compute ceiling,
// materializes the accounts each slot needs, dispatches, and writes results
// back into the shared stores. All store mutation in the system happens
// here, strictly after the core returns.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/observability"
	"solana-price-oracle/internal/oracle"
)

var (
	// ErrBudgetExceeded is returned when a planned batch would exceed the
	// compute ceiling.
	ErrBudgetExceeded = errors.New("refresh: batch exceeds compute budget ceiling")

	// ErrSlotNotConfigured is returned when a requested slot has no mapping
	// entry.
	ErrSlotNotConfigured = errors.New("refresh: slot not configured")

	// ErrAccountUnavailable is returned when the feed snapshot does not hold
	// an account a slot needs.
	ErrAccountUnavailable = errors.New("refresh: account not in snapshot")
)

// DefaultBudgetCeiling caps the summed per-kind budgets of one batch.
const DefaultBudgetCeiling uint32 = 1_400_000

// AccountSource supplies materialized account snapshots by key. The
// snapshot must be internally consistent for the duration of one batch.
type AccountSource interface {
	Account(key domain.PubKey) (*accounts.Account, bool)
}

// HistorySink receives every resolved price for archival. Failures are
// logged, not propagated: history is best effort.
type HistorySink interface {
	Record(ctx context.Context, index int, kind uint8, dp domain.DatedPrice) error
}

// Stores groups the three shared stores of one deployment plus the key
// identifying the price store.
type Stores struct {
	Mappings  *domain.OracleMappings
	Twaps     *domain.OracleTwaps
	Prices    *domain.OraclePrices
	PricesKey domain.PubKey
}

// Refresher resolves batches of mapping slots.
type Refresher struct {
	stores  Stores
	source  AccountSource
	history HistorySink
	ceiling uint32
	log     zerolog.Logger
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithBudgetCeiling overrides the default compute ceiling.
func WithBudgetCeiling(ceiling uint32) Option {
	return func(r *Refresher) {
		r.ceiling = ceiling
	}
}

// WithHistorySink attaches an archival sink for resolved prices.
func WithHistorySink(sink HistorySink) Option {
	return func(r *Refresher) {
		r.history = sink
	}
}

// New creates a Refresher over the given stores and account source.
func New(stores Stores, source AccountSource, log zerolog.Logger, opts ...Option) *Refresher {
	r := &Refresher{
		stores:  stores,
		source:  source,
		ceiling: DefaultBudgetCeiling,
		log:     log.With().Str("component", "refresh").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan verifies a batch of slot indices fits the compute ceiling. The
// budget is advisory and additive: the sum of each kind's declared budget
// must stay under the ceiling before any dispatch is issued.
func (r *Refresher) Plan(indices []int) (uint32, error) {
	var total uint32
	for _, index := range indices {
		kind, err := r.slotKind(index)
		if err != nil {
			return 0, err
		}
		total += kind.RefreshBudget()
	}
	if total > r.ceiling {
		observability.RecordBudgetRejection()
		return total, fmt.Errorf("%w: %d > %d", ErrBudgetExceeded, total, r.ceiling)
	}
	return total, nil
}

// RefreshBatch plans and resolves a batch of slots under a single clock.
// Slots that fail resolve are logged and skipped; the rest of the batch
// still lands. The returned error is non-nil only when the whole batch was
// rejected.
func (r *Refresher) RefreshBatch(ctx context.Context, indices []int, clock domain.Clock) error {
	if _, err := r.Plan(indices); err != nil {
		return err
	}
	for _, index := range indices {
		if err := r.refreshOne(ctx, index, clock); err != nil {
			r.log.Warn().Err(err).Int("slot", index).Msg("refresh failed")
		}
	}
	return nil
}

func (r *Refresher) refreshOne(ctx context.Context, index int, clock domain.Clock) error {
	start := time.Now()

	entry, ok := r.stores.Mappings.Entry(index)
	if !ok || !entry.IsConfigured() {
		return fmt.Errorf("%w: %d", ErrSlotNotConfigured, index)
	}
	kind, err := oracle.KindFromWire(entry.Kind)
	if err != nil {
		return err
	}

	base, extras, err := r.materialize(kind, entry)
	if err != nil {
		observability.RecordRefresh(kind.String(), "account_missing", time.Since(start))
		return err
	}

	iter := accounts.NewIterator(extras)
	dp, err := oracle.GetPrice(kind, base, iter, clock,
		r.stores.Twaps, r.stores.Mappings, r.stores.Prices, r.stores.PricesKey, index)
	if err != nil {
		observability.RecordRefresh(kind.String(), "error", time.Since(start))
		return err
	}
	if err := oracle.CheckNoExtraAccounts(iter); err != nil {
		observability.RecordRefresh(kind.String(), "protocol_error", time.Since(start))
		return err
	}

	// Mutation happens only here, after the pure dispatch path returned.
	r.stores.Prices.Set(index, dp)
	if !kind.IsTwap() {
		r.stores.Twaps.Append(index, domain.TwapObservation{
			Price:     dp.Price,
			Slot:      dp.LastUpdatedSlot,
			Timestamp: dp.UnixTimestamp,
		})
	}

	if r.history != nil {
		if err := r.history.Record(ctx, index, entry.Kind, dp); err != nil {
			r.log.Warn().Err(err).Int("slot", index).Msg("history sink write failed")
		}
	}

	observability.RecordRefresh(kind.String(), "ok", time.Since(start))
	r.log.Debug().
		Int("slot", index).
		Stringer("kind", kind).
		Str("price", dp.Price.String()).
		Uint64("updated_slot", dp.LastUpdatedSlot).
		Msg("slot refreshed")
	return nil
}

func (r *Refresher) slotKind(index int) (oracle.Kind, error) {
	entry, ok := r.stores.Mappings.Entry(index)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrSlotNotConfigured, index)
	}
	return oracle.KindFromWire(entry.Kind)
}

// materialize pulls the base account and the auxiliary accounts a kind
// declares needing out of the feed snapshot, in the order the adapter will
// draw them.
func (r *Refresher) materialize(kind oracle.Kind, entry *domain.MappingEntry) (*accounts.Account, []*accounts.Account, error) {
	var base *accounts.Account
	if !entry.PriceAccount.IsZero() {
		acc, ok := r.source.Account(entry.PriceAccount)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrAccountUnavailable, accounts.KeyString(entry.PriceAccount))
		}
		base = acc
	}

	keys := ExtraAccountKeys(kind, base)
	extras := make([]*accounts.Account, 0, len(keys))
	for _, key := range keys {
		acc, ok := r.source.Account(key)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrAccountUnavailable, accounts.KeyString(key))
		}
		extras = append(extras, acc)
	}
	return base, extras, nil
}
