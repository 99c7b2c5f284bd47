// Package main runs the price refresher: it hydrates the mapping table,
// keeps a local account snapshot fresh over RPC and websocket, resolves
// every configured slot on an interval, and serves the resolved table over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/api"
	"solana-price-oracle/internal/config"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/feed"
	"solana-price-oracle/internal/logging"
	"solana-price-oracle/internal/observability"
	"solana-price-oracle/internal/oracle"
	"solana-price-oracle/internal/refresh"
	"solana-price-oracle/internal/storage"
	chstore "solana-price-oracle/internal/storage/clickhouse"
	"solana-price-oracle/internal/storage/memory"
	pgstore "solana-price-oracle/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres/ClickHouse")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *useMemory, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("refresher exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, useMemory bool, log zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pricesKey, err := accounts.ParseKey(cfg.App.PricesKey)
	if err != nil {
		return fmt.Errorf("parse prices_key: %w", err)
	}

	mappingStore, historyStore, cleanup, err := createStores(ctx, cfg, useMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	mappings, err := mappingStore.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}
	configured := configuredSlots(mappings)
	observability.DefaultMetrics.SlotsConfigured.Set(float64(len(configured)))
	log.Info().Int("slots", len(configured)).Msg("mapping table loaded")

	stores := refresh.Stores{
		Mappings:  mappings,
		Twaps:     &domain.OracleTwaps{},
		Prices:    &domain.OraclePrices{},
		PricesKey: pricesKey,
	}

	rpc := feed.NewHTTPClient(cfg.Feed.RPCEndpoint,
		feed.WithTimeout(cfg.Feed.RPCTimeout),
		feed.WithMaxRetries(cfg.Feed.MaxRetries),
	)
	snapshot := feed.NewSnapshot()

	baseKeys := baseAccountKeys(mappings, configured)
	if err := snapshot.Refresh(ctx, rpc, baseKeys); err != nil {
		return fmt.Errorf("initial snapshot fetch: %w", err)
	}
	// Auxiliary keys are listed inside the base accounts, so they can only
	// be known after the first fetch.
	extraKeys := auxAccountKeys(mappings, configured, snapshot)
	if len(extraKeys) > 0 {
		if err := snapshot.Refresh(ctx, rpc, extraKeys); err != nil {
			return fmt.Errorf("auxiliary snapshot fetch: %w", err)
		}
	}
	log.Info().Int("accounts", snapshot.Len()).Msg("snapshot hydrated")

	if cfg.Feed.WSEndpoint != "" {
		sub, err := feed.NewSubscriber(ctx, cfg.Feed.WSEndpoint, snapshot, log, nil)
		if err != nil {
			return fmt.Errorf("connect websocket: %w", err)
		}
		defer sub.Close()
		if err := sub.WatchAll(ctx, append(baseKeys, extraKeys...)); err != nil {
			return fmt.Errorf("subscribe accounts: %w", err)
		}
	}

	opts := []refresh.Option{refresh.WithHistorySink(storage.NewHistorySink(historyStore))}
	if cfg.Refresh.BudgetCeiling > 0 {
		opts = append(opts, refresh.WithBudgetCeiling(cfg.Refresh.BudgetCeiling))
	}
	refresher := refresh.New(stores, snapshot, log, opts...)

	srv := &http.Server{
		Addr: cfg.API.Addr,
		Handler: api.BuildRouter(api.NewAPI(api.Deps{
			Log:      log,
			Mappings: mappings,
			Prices:   stores.Prices,
			History:  historyStore,
		})),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.API.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	runLoop(ctx, cfg, refresher, rpc, configured, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return ctx.Err()
}

// runLoop resolves every configured slot on the refresh interval. Slots are
// chunked so one batch never exceeds the compute ceiling by construction of
// the configuration, and twap slots run last so they fold the observations
// their sources appended in the same round.
func runLoop(ctx context.Context, cfg *config.Config, refresher *refresh.Refresher, rpc feed.RPCClient, configured []int, log zerolog.Logger) {
	ticker := time.NewTicker(cfg.Refresh.Interval)
	defer ticker.Stop()

	for {
		clock, err := rpc.GetClock(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("clock fetch failed, skipping round")
		} else {
			for _, batch := range chunk(configured, cfg.Refresh.BatchSize) {
				if err := refresher.RefreshBatch(ctx, batch, clock); err != nil {
					log.Warn().Err(err).Msg("batch rejected")
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (storage.MappingStore, storage.PriceHistoryStore, func(), error) {
	if useMemory {
		return memory.NewMappingStore(), memory.NewPriceHistoryStore(), func() {}, nil
	}
	if cfg.Stores.Postgres.DSN == "" || cfg.Stores.ClickHouse.DSN == "" {
		return nil, nil, nil, errors.New("stores.postgres.dsn and stores.clickhouse.dsn are required (or pass -use-memory)")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Stores.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	mappingStore := pgstore.NewMappingStore(pool)
	if err := mappingStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	conn, err := chstore.NewConn(ctx, cfg.Stores.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	historyStore := chstore.NewPriceHistoryStore(conn)
	if err := historyStore.EnsureSchema(ctx); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return mappingStore, historyStore, cleanup, nil
}

// configuredSlots lists administered slot indices with twap slots moved to
// the end, so their source observations land first within a round.
func configuredSlots(mappings *domain.OracleMappings) []int {
	var direct, twaps []int
	for index := 0; index < domain.MaxEntries; index++ {
		entry, _ := mappings.Entry(index)
		if !entry.IsConfigured() {
			continue
		}
		kind, err := oracle.KindFromWire(entry.Kind)
		if err != nil || kind.IsDeprecated() {
			continue
		}
		if kind.IsTwap() {
			twaps = append(twaps, index)
		} else {
			direct = append(direct, index)
		}
	}
	return append(direct, twaps...)
}

func baseAccountKeys(mappings *domain.OracleMappings, configured []int) []domain.PubKey {
	seen := make(map[domain.PubKey]bool)
	var keys []domain.PubKey
	for _, index := range configured {
		entry, _ := mappings.Entry(index)
		if entry.PriceAccount.IsZero() || seen[entry.PriceAccount] {
			continue
		}
		seen[entry.PriceAccount] = true
		keys = append(keys, entry.PriceAccount)
	}
	return keys
}

func auxAccountKeys(mappings *domain.OracleMappings, configured []int, snapshot *feed.Snapshot) []domain.PubKey {
	seen := make(map[domain.PubKey]bool)
	var keys []domain.PubKey
	for _, index := range configured {
		entry, _ := mappings.Entry(index)
		kind, err := oracle.KindFromWire(entry.Kind)
		if err != nil {
			continue
		}
		base, ok := snapshot.Account(entry.PriceAccount)
		if !ok {
			continue
		}
		for _, key := range refresh.ExtraAccountKeys(kind, base) {
			if key.IsZero() || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func chunk(indices []int, size int) [][]int {
	if size <= 0 {
		return [][]int{indices}
	}
	var out [][]int
	for start := 0; start < len(indices); start += size {
		end := start + size
		if end > len(indices) {
			end = len(indices)
		}
		out = append(out, indices[start:end])
	}
	return out
}
