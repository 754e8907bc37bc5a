package router

import (
	"net/http"

	"portal-rest-api/internal/handler"
	"portal-rest-api/internal/metrics"
	"portal-rest-api/internal/middleware"
	"portal-rest-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	PostHandler     *handler.PostHandler
	GalleryHandler  *handler.GalleryHandler
	FeedbackHandler *handler.FeedbackHandler
	UploadHandler   *handler.UploadHandler
	AdminHandler    *handler.AdminHandler
	AuthHandler     *handler.AuthHandler
	AuthMiddleware  func(http.Handler) http.Handler

	AllowedOrigins []string

	// MediaDir is served under MediaPath when uploads go to local disk.
	MediaDir  string
	MediaPath string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	}))

	r.Handle("/metrics", metrics.Handler())

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	if cfg.MediaDir != "" && cfg.MediaPath != "" {
		prefix := cfg.MediaPath + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.MediaDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// PUBLIC routes
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.PostHandler != nil {
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", cfg.PostHandler.List)
				r.Get("/popular", cfg.PostHandler.Popular)
				r.Get("/{slug}", cfg.PostHandler.Get)
				r.Get("/{slug}/related", cfg.PostHandler.Related)
				r.Post("/{slug}/view", cfg.PostHandler.RecordView)
			})
		}

		if cfg.GalleryHandler != nil {
			r.Get("/gallery", cfg.GalleryHandler.ListPhotos)
			r.Get("/events", cfg.GalleryHandler.ListEvents)
		}

		if cfg.FeedbackHandler != nil {
			r.Post("/feedback", cfg.FeedbackHandler.Submit)
		}

		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			} else {
				r.Use(denyAll)
			}

			if cfg.AuthHandler != nil {
				r.Get("/auth/me", cfg.AuthHandler.Me)
				r.Post("/auth/revoke", cfg.AuthHandler.RevokeToken)
			}

			r.Route("/admin", func(r chi.Router) {
				// Content editing is open to editors as well as admins.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(model.RoleAdmin, model.RoleEditor))

					if cfg.PostHandler != nil {
						r.Get("/posts", cfg.PostHandler.AdminList)
						r.Post("/posts", cfg.PostHandler.Create)
						r.Get("/posts/{id}", cfg.PostHandler.AdminGet)
						r.Put("/posts/{id}", cfg.PostHandler.Update)
						r.Delete("/posts/{id}", cfg.PostHandler.Delete)
						r.Put("/posts/{id}/cover", cfg.PostHandler.SetCover)
					}

					if cfg.UploadHandler != nil {
						r.Post("/uploads", cfg.UploadHandler.Upload)
					}

					if cfg.GalleryHandler != nil {
						r.Post("/gallery", cfg.GalleryHandler.AddPhoto)
						r.Delete("/gallery/{id}", cfg.GalleryHandler.DeletePhoto)
						r.Post("/events", cfg.GalleryHandler.CreateEvent)
						r.Delete("/events/{id}", cfg.GalleryHandler.DeleteEvent)
					}
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(model.RoleAdmin))

					if cfg.FeedbackHandler != nil {
						r.Get("/feedback", cfg.FeedbackHandler.List)
						r.Put("/feedback/{id}/status", cfg.FeedbackHandler.UpdateStatus)
					}

					if cfg.AdminHandler != nil {
						r.Get("/stats", cfg.AdminHandler.GetStats)
						r.Post("/cache/invalidate", cfg.AdminHandler.InvalidateCache)
						r.Get("/uploads/logs", cfg.AdminHandler.GetUploadLogs)
					}
				})
			})
		})
	})

	return r
}

// denyAll guards the authenticated group when no token service is configured.
func denyAll(next http.Handler) http.Handler {
	return middleware.NewAuthMiddleware(nil)(next)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
