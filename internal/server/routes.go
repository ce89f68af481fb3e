package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/geoguess/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	svc := deps.Service
	guesses := newUserLimiter(deps.GuessLimit, deps.GuessBurst)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("GeoGuess API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Health).Routes())
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/modes", handleModes(svc))
		r.Get("/leaderboard", handleLeaderboard(logger, svc))

		// Player routes, identified by bearer token.
		r.Group(func(r chi.Router) {
			r.Use(requireIdentity(logger, deps.Tokens, svc))

			r.Get("/me/stats", handleUserStats(logger, svc))
			r.Post("/games", handleCreateGame(logger, svc))
			r.Route("/games/{gameID}", func(r chi.Router) {
				r.Get("/round", handleCurrentRound(logger, svc))
				r.With(rateLimit(guesses)).Post("/guess", handleGuess(logger, svc))
				r.Get("/results", handleResults(logger, svc))
			})
		})
	})
}
