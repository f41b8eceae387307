package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/ITAMARV101/duowalk/internal/handlers"
)

func AuthRoutes(r *chi.Mux, authHandler *handlers.AuthHandler) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", authHandler.RegisterHandler) // Account + profile creation
		r.Post("/login", authHandler.LoginHandler)       // Credentials -> token, starts tracking
		r.Post("/logout", authHandler.LogoutHandler)     // Ends the session
	})
}
