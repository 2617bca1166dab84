package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/bazarcheh/auth-service/internal/http/handlers"
	"github.com/bazarcheh/auth-service/internal/middleware"
)

// RouterDeps carries everything the router needs wired in.
type RouterDeps struct {
	Auth      *handlers.AuthHandler
	AuthMW    middleware.Authenticator
	RateLimit func(http.Handler) http.Handler
	Log       *logrus.Logger
}

// NewRouter mounts the HTTP surface.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(chimw.Recoverer)

	r.Get("/health", handlers.HandleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit)
			}
			r.Post("/request-otp", deps.Auth.HandleRequestOtp)
		})

		r.Post("/signup", deps.Auth.HandleSignup)
		r.Post("/login", deps.Auth.HandleLogin)
		r.Post("/refresh", deps.Auth.HandleRefresh)
		r.Post("/logout", deps.Auth.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthMW))
			r.Get("/me", deps.Auth.HandleMe)
		})
	})

	return r
}
