package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/ITAMARV101/duowalk/internal/handlers"
)

func ProfileRoutes(r *chi.Mux, profileHandler *handlers.ProfileHandler) {
	r.Route("/api/v1/profile", func(r chi.Router) {
		r.Get("/", profileHandler.GetProfileHandler)    // Caller's private profile
		r.Put("/", profileHandler.UpdateProfileHandler) // Username/phone edit via claims
	})
	r.Delete("/api/v1/account", profileHandler.DeleteAccountHandler) // Full account removal
}
