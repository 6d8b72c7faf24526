package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wodnrP/accounts-service/internal/service"
	"github.com/wodnrP/accounts-service/pkg/health"
	"github.com/wodnrP/accounts-service/pkg/middleware"
)

// publicProfileCacheMaxAge is the Cache-Control max-age for public profile
// responses, in seconds.
const publicProfileCacheMaxAge = 60

// RouterConfig holds the knobs the router needs beyond its handlers.
type RouterConfig struct {
	CORS        CORSConfig
	PprofCIDRs  []string
	EnablePprof bool
}

// NewRouter creates a chi router with all service routes registered.
func NewRouter(
	authService *service.AuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing("accounts"))
	r.Use(middleware.PrometheusMetrics("accounts"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if cfg.EnablePprof {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	authHandler := NewAuthHandler(authService, logger)
	userHandler := NewUserHandler(authService, logger)

	// Session endpoints (public). Logout carries no auth requirement: it
	// only clears the refresh cookie, and a client whose access token has
	// already expired must still be able to end its session.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Delete("/logout", authHandler.Logout)
	})

	// Own-profile endpoints (auth required)
	r.Route("/api/v1/users/me", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(authService.IdentifyFromBearer))

		r.Get("/", userHandler.GetProfile)
		r.Patch("/", userHandler.UpdateProfile)
		r.Delete("/", userHandler.DeleteAccount)
	})

	// Public profile endpoint
	r.Group(func(r chi.Router) {
		r.Use(middleware.CacheControl(publicProfileCacheMaxAge))

		r.Get("/api/v1/users/{id}", userHandler.GetPublicProfile)
	})

	return r
}
