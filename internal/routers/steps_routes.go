package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/ITAMARV101/duowalk/internal/handlers"
)

func StepsRoutes(r *chi.Mux, stepsHandler *handlers.StepsHandler) {
	r.Route("/api/v1/steps", func(r chi.Router) {
		r.Get("/", stepsHandler.GetStepsHandler)             // Live local counters
		r.Post("/readings", stepsHandler.PostReadingHandler) // Raw sensor reading
	})
	r.Get("/api/v1/leaderboard", stepsHandler.LeaderboardHandler) // Public ranking
}
