package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opdflow/clinic-queue-platform/internal/http/handlers"
	httpmiddleware "github.com/opdflow/clinic-queue-platform/internal/http/middleware"
	"github.com/opdflow/clinic-queue-platform/internal/notify"
	"github.com/opdflow/clinic-queue-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	QueueHandler       *handlers.QueueHandler
	StatusHandler      *handlers.DoctorStatusHandler
	SettingsHandler    *handlers.SessionSettingsHandler
	DashboardHandler   *handlers.DayDashboardHandler
	Hub                *notify.Hub
	MetricsHandler     http.Handler
	DoctorJWTSecret    string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

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

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	auth := httpmiddleware.DoctorJWT(cfg.DoctorJWTSecret)

	// The live queue feed authenticates via ?token= because browsers cannot
	// set headers on websocket upgrades.
	if cfg.Hub != nil {
		r.With(auth).Get("/ws/queue", cfg.Hub.Subscribe)
	}

	// Doctor-facing API
	r.Route("/api", func(api chi.Router) {
		api.Use(auth)

		api.Route("/doctor", func(r chi.Router) {
			r.Get("/status", cfg.StatusHandler.Get)
			r.Put("/status", cfg.StatusHandler.Set)
		})

		api.Route("/queue", func(r chi.Router) {
			r.Post("/start", cfg.QueueHandler.Start)
			r.Post("/next", cfg.QueueHandler.Next)
			r.Post("/complete", cfg.QueueHandler.Complete)
			r.Post("/no-show", cfg.QueueHandler.NoShow)
			r.Get("/missed", cfg.QueueHandler.Missed)
		})

		api.Get("/appointments/today", cfg.QueueHandler.Today)
		api.Put("/sessions/{sessionID}/recall", cfg.SettingsHandler.UpdateRecall)

		if cfg.DashboardHandler != nil {
			api.Get("/dashboard/day", cfg.DashboardHandler.GetDay)
		}
	})

	return r
}
