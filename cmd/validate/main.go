// Package main validates a proposed mapping configuration before it is
// committed. Entries come from a YAML file; accounts they reference are
// fetched over RPC so the same admission checks the administration path
// runs can see real data.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/feed"
	"solana-price-oracle/internal/logging"
	"solana-price-oracle/internal/oracle"
)

// proposedEntry is one candidate mapping slot as written by an operator.
type proposedEntry struct {
	Index        int    `yaml:"index"`
	Kind         uint8  `yaml:"kind"`
	PriceAccount string `yaml:"price_account"`
	TwapSource   uint16 `yaml:"twap_source"`
	// Generic is the 20-byte payload, hex encoded. Empty means all zero.
	Generic string `yaml:"generic"`
}

type proposal struct {
	Entries []proposedEntry `yaml:"entries"`
}

func main() {
	proposalPath := flag.String("proposal", "", "Path to YAML file with proposed mapping entries")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "RPC endpoint for fetching referenced accounts")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall validation timeout")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logging.New(*logLevel, "console")

	if *proposalPath == "" {
		log.Fatal().Msg("-proposal is required")
	}

	raw, err := os.ReadFile(*proposalPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read proposal")
	}
	var prop proposal
	if err := yaml.Unmarshal(raw, &prop); err != nil {
		log.Fatal().Err(err).Msg("parse proposal")
	}
	if len(prop.Entries) == 0 {
		log.Fatal().Msg("proposal holds no entries")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mappings, entries, err := buildMappings(prop)
	if err != nil {
		log.Fatal().Err(err).Msg("bad proposal")
	}

	var rpc feed.RPCClient
	if *rpcEndpoint != "" {
		rpc = feed.NewHTTPClient(*rpcEndpoint)
	}

	failures := 0
	for _, pe := range entries {
		entry, _ := mappings.Entry(pe.Index)
		kind, err := oracle.KindFromWire(entry.Kind)
		if err != nil {
			log.Error().Int("slot", pe.Index).Uint8("kind", entry.Kind).Err(err).Msg("rejected")
			failures++
			continue
		}

		account, err := fetchAccount(ctx, rpc, entry.PriceAccount)
		if err != nil {
			log.Error().Int("slot", pe.Index).Err(err).Msg("account fetch failed")
			failures++
			continue
		}

		if err := oracle.ValidateMapping(mappings, kind, account, entry.TwapSource, entry.Generic); err != nil {
			log.Error().Int("slot", pe.Index).Stringer("kind", kind).Err(err).Msg("rejected")
			failures++
			continue
		}
		log.Info().Int("slot", pe.Index).Stringer("kind", kind).Msg("ok")
	}

	if failures > 0 {
		log.Fatal().Int("failures", failures).Msg("proposal rejected")
	}
	log.Info().Int("entries", len(entries)).Msg("proposal accepted")
}

// buildMappings assembles the full mapping table the twap source checks
// validate against. Every proposed entry lands in the table first so twap
// entries may reference slots proposed in the same file.
func buildMappings(prop proposal) (*domain.OracleMappings, []proposedEntry, error) {
	mappings := &domain.OracleMappings{}
	for _, pe := range prop.Entries {
		if pe.Index < 0 || pe.Index >= domain.MaxEntries {
			return nil, nil, fmt.Errorf("slot %d out of range", pe.Index)
		}
		entry := domain.MappingEntry{
			Kind:       pe.Kind,
			TwapSource: pe.TwapSource,
		}
		if pe.PriceAccount != "" {
			key, err := accounts.ParseKey(pe.PriceAccount)
			if err != nil {
				return nil, nil, fmt.Errorf("slot %d: price_account: %w", pe.Index, err)
			}
			entry.PriceAccount = key
		}
		if pe.Generic != "" {
			payload, err := hex.DecodeString(pe.Generic)
			if err != nil || len(payload) != domain.GenericDataSize {
				return nil, nil, fmt.Errorf("slot %d: generic must be %d hex-encoded bytes", pe.Index, domain.GenericDataSize)
			}
			copy(entry.Generic[:], payload)
		}
		mappings.Entries[pe.Index] = entry
	}
	return mappings, prop.Entries, nil
}

// fetchAccount materializes the referenced account, or nil when the entry
// references none or no RPC endpoint was given.
func fetchAccount(ctx context.Context, rpc feed.RPCClient, key domain.PubKey) (*accounts.Account, error) {
	if key.IsZero() || rpc == nil {
		return nil, nil
	}
	fetched, err := rpc.GetMultipleAccounts(ctx, []domain.PubKey{key})
	if err != nil {
		return nil, err
	}
	if fetched[0] == nil {
		return nil, fmt.Errorf("account %s does not exist", accounts.KeyString(key))
	}
	return fetched[0], nil
}
