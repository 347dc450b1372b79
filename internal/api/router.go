package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(svc Reconciler, entries EntryStore, log logrus.FieldLogger, cfg Config) http.Handler {
	return newRouterWith(NewHandlers(svc, entries, log, cfg))
}

func newRouterWith(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Runs.
		r.Post("/reconcile", h.Reconcile)
		r.Get("/runs", h.ListRuns)

		// Fixes.
		r.Post("/reconciliation/fix/{payoutID}", h.FixPayout)

		// Audit trail.
		r.Get("/payouts", h.AuditReport)
		r.Get("/entries", h.ListEntries)
		r.Get("/entries/summary", h.GetEntrySummary)
	})

	return r
}
