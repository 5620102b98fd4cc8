package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/ytgrabba/internal/api/handler"
	mw "github.com/iconidentify/ytgrabba/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	videoHandler *handler.VideoHandler,
	healthHandler *handler.HealthHandler,
	corsOrigins string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS(corsOrigins))

	// No request timeout: downloads block on yt-dlp and then stream for as
	// long as the client needs.

	r.Get("/", healthHandler.Home)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Post("/search", videoHandler.Search)
	r.Post("/info", videoHandler.Info)
	r.Post("/download", videoHandler.Download)

	return r
}
