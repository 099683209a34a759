package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/radiancehq/medspa-waitlist/internal/http/middleware"
	"github.com/radiancehq/medspa-waitlist/internal/waitlist"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WaitlistHandler *waitlist.Handler
	MetricsHandler  http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Rate limiting for the public token endpoints. Zero disables it.
	PublicRateLimit float64
	PublicBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health, metrics, patient offer responses)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Group(func(offers chi.Router) {
			if cfg.PublicRateLimit > 0 {
				offers.Use(httpmiddleware.RateLimit(cfg.PublicRateLimit, cfg.PublicBurst))
			}
			cfg.WaitlistHandler.RegisterPublicRoutes(offers)
		})
	})

	// Admin routes (protected by HMAC JWT)
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		cfg.WaitlistHandler.RegisterAdminRoutes(admin)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
