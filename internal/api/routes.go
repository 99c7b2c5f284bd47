package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"solana-price-oracle/internal/observability"
)

// BuildRouter wires the read-only price surface.
func BuildRouter(a *API) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", a.Healthz)
	r.Mount("/metrics", observability.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/prices", a.ListPrices)
		v1.Get("/prices/{index}", a.GetPrice)
		v1.Get("/prices/{index}/history", a.GetHistory)
		v1.Get("/mappings/{index}", a.GetMapping)
	})

	return r
}
