package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tubetrack-backend/internal/handlers"
	"tubetrack-backend/internal/middleware"
)

type Handlers struct {
	Session  *handlers.SessionHandler
	Playlist *handlers.PlaylistHandler
	Study    *handlers.StudyHandler
	Credits  *handlers.CreditsHandler
	// WebSocket is the hub's upgrade handler.
	WebSocket http.HandlerFunc
}

// New builds the shell-facing API. limiter guards the routes that reach the
// video platform or the generator.
func New(identity middleware.Identity, limiter *middleware.RateLimiter, h Handlers, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(identity))

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.Get)
			r.Post("/", h.Session.SignIn)
			r.Delete("/", h.Session.SignOut)
		})

		// ──── Playlist Routes ────
		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", h.Playlist.List)
			r.With(limiter.Middleware).Post("/", h.Playlist.Add)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Playlist.Open)
				r.Delete("/", h.Playlist.Delete)
				r.With(limiter.Middleware).Post("/refresh", h.Playlist.Refresh)
				r.Get("/cache", h.Playlist.CacheInfo)
				r.Get("/results", h.Study.Results)

				r.Route("/videos/{videoId}", func(r chi.Router) {
					r.Post("/toggle", h.Playlist.ToggleProgress)

					// Generation routes spend credits.
					r.Group(func(r chi.Router) {
						r.Use(limiter.Middleware)
						r.Post("/notes", h.Study.Notes)
						r.Post("/test", h.Study.GenerateTest)
					})
					r.Get("/test", h.Study.GetTest)
					r.Post("/test/submit", h.Study.SubmitTest)
				})
			})
		})

		// ──── Account Routes ────
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/credits", h.Credits.Balance)
			r.Get("/stats", h.Study.Stats)
		})

		// ──── Task Routes ────
		r.Get("/tasks/{id}", h.Playlist.Task)

		// ──── WebSocket ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}
