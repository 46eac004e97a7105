package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/session"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Log        *zap.Logger
	Rides      *RideHandler
	Auth       *AuthHandler
	Health     *HealthHandler
	Sessions   *session.Manager
	Limiter    *RateLimiter
	CORSOrigin string
	StaticDir  string
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Left off, the peer address is used.
	TrustProxy bool
}

// NewRouter builds the chi router serving the API and the static front end.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(Logger(cfg.Log))
	r.Use(CORS(cfg.CORSOrigin))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/health", cfg.Health.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Sessions.Load)

		r.Route("/rides", func(r chi.Router) {
			r.Get("/", cfg.Rides.List)
			r.Post("/", cfg.Rides.Create)
			r.Get("/search", cfg.Rides.Search)
			r.Post("/create", cfg.Rides.Create)
			r.Get("/{id}", cfg.Rides.Get)
			r.Post("/{id}/book", cfg.Rides.Book)
		})
		r.Get("/bookings", cfg.Rides.Bookings)

		r.Route("/auth", func(r chi.Router) {
			r.With(cfg.Limiter.Middleware).Post("/login", cfg.Auth.Login)
			r.With(cfg.Limiter.Middleware).Post("/register", cfg.Auth.Register)
			r.Post("/logout", cfg.Auth.Logout)
			r.Get("/session", cfg.Auth.Session)
			r.Get("/profile", cfg.Auth.Profile)
		})
	})

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return r
}
