// Package api exposes the resolved price table over HTTP. It is a read-only
// surface; all writes go through the refresh path.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"solana-price-oracle/internal/accounts"
	"solana-price-oracle/internal/domain"
	"solana-price-oracle/internal/oracle"
	"solana-price-oracle/internal/storage"
)

// Deps groups everything the handlers read from.
type Deps struct {
	Log zerolog.Logger

	Mappings *domain.OracleMappings
	Prices   *domain.OraclePrices
	History  storage.PriceHistoryStore // optional, nil disables /history
}

// API holds the HTTP handlers.
type API struct {
	deps Deps
}

// NewAPI creates the handler set.
func NewAPI(d Deps) *API {
	return &API{deps: d}
}

// priceResponse is the JSON shape of one resolved slot.
type priceResponse struct {
	Index         int    `json:"index"`
	Kind          string `json:"kind"`
	Value         uint64 `json:"value"`
	Exp           uint64 `json:"exp"`
	Price         string `json:"price"`
	UpdatedSlot   uint64 `json:"updated_slot"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

// mappingResponse is the JSON shape of one slot's configuration.
type mappingResponse struct {
	Index        int    `json:"index"`
	Kind         string `json:"kind"`
	PriceAccount string `json:"price_account"`
	TwapSource   uint16 `json:"twap_source,omitempty"`
}

// Healthz reports process liveness.
func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListPrices returns every configured slot's current price.
func (a *API) ListPrices(w http.ResponseWriter, _ *http.Request) {
	out := make([]priceResponse, 0, domain.MaxEntries)
	for index := 0; index < domain.MaxEntries; index++ {
		entry, ok := a.deps.Mappings.Entry(index)
		if !ok || !entry.IsConfigured() {
			continue
		}
		resp, err := a.slotResponse(index, entry)
		if err != nil {
			continue
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPrice returns one slot's current price.
func (a *API) GetPrice(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, ok := a.deps.Mappings.Entry(index)
	if !ok || !entry.IsConfigured() {
		writeError(w, http.StatusNotFound, errors.New("slot not configured"))
		return
	}
	resp, err := a.slotResponse(index, entry)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMapping returns one slot's configuration.
func (a *API) GetMapping(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, ok := a.deps.Mappings.Entry(index)
	if !ok || !entry.IsConfigured() {
		writeError(w, http.StatusNotFound, errors.New("slot not configured"))
		return
	}
	kind, err := oracle.KindFromWire(entry.Kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{
		Index:        index,
		Kind:         kind.String(),
		PriceAccount: accounts.KeyString(entry.PriceAccount),
		TwapSource:   entry.TwapSource,
	})
}

// GetHistory returns recent archived prices for one slot, newest first.
func (a *API) GetHistory(w http.ResponseWriter, r *http.Request) {
	if a.deps.History == nil {
		writeError(w, http.StatusNotFound, errors.New("history not enabled"))
		return
	}
	index, err := indexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be in [1, 1000]"))
			return
		}
		limit = parsed
	}

	records, err := a.deps.History.GetByIndex(r.Context(), index, limit)
	if err != nil {
		a.deps.Log.Error().Err(err).Int("slot", index).Msg("history read failed")
		writeError(w, http.StatusInternalServerError, errors.New("history read failed"))
		return
	}

	out := make([]priceResponse, 0, len(records))
	for _, rec := range records {
		kind, err := oracle.KindFromWire(rec.Kind)
		if err != nil {
			continue
		}
		p := domain.Price{Value: rec.Value, Exp: rec.Exp}
		out = append(out, priceResponse{
			Index:         rec.Index,
			Kind:          kind.String(),
			Value:         rec.Value,
			Exp:           rec.Exp,
			Price:         p.String(),
			UpdatedSlot:   rec.UpdatedSlot,
			UnixTimestamp: rec.UnixTimestamp,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) slotResponse(index int, entry *domain.MappingEntry) (priceResponse, error) {
	kind, err := oracle.KindFromWire(entry.Kind)
	if err != nil {
		return priceResponse{}, err
	}
	dp, ok := a.deps.Prices.At(index)
	if !ok || dp.LastUpdatedSlot == 0 {
		return priceResponse{}, errors.New("price not yet resolved")
	}
	return priceResponse{
		Index:         index,
		Kind:          kind.String(),
		Value:         dp.Price.Value,
		Exp:           dp.Price.Exp,
		Price:         dp.Price.String(),
		UpdatedSlot:   dp.LastUpdatedSlot,
		UnixTimestamp: dp.UnixTimestamp,
	}, nil
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 || index >= domain.MaxEntries {
		return 0, errors.New("index must be in [0, 511]")
	}
	return index, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
