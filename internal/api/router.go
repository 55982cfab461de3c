package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-auth/internal/api/handlers"
	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/isdelr/ender-auth/internal/services"
)

// RouterConfig carries the boundary-layer settings.
type RouterConfig struct {
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg RouterConfig, issuer *auth.Issuer, userService services.UserServiceProvider, eventService services.EventServiceProvider) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, issuer, cfg.SecureCookies)
	eventHandler := handlers.NewEventHandler(eventService)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
		})

		// Routes that require a valid session token
		r.Group(func(r chi.Router) {
			r.Use(auth.JWTMiddleware(issuer))
			r.Get("/users/me", userHandler.GetMe)
			r.Get("/events", eventHandler.GetRecent)
		})
	})

	return r
}
