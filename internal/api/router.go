// Package api exposes the operator HTTP surface of the chat-tts-service:
// health, synchronous batch invocation and retrieval of stored speech.
package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// APIKey must be sent as X-API-Key or Authorization: Bearer <key> on /v1 routes.
	// If empty, auth middleware is skipped.
	APIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins. Empty allows all.
	CorsAllowedOrigins string
}

// NewRouter wires the handlers onto a chi router.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(APIKeyAuth(cfg.APIKey))
		}

		r.Post("/batches", h.ProcessBatch)
		r.Get("/speech/{pointer}", h.GetSpeech)
	})

	return r
}

func allowedOrigins(raw string) []string {
	origins := make([]string, 0)

	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	if len(origins) == 0 {
		return []string{"*"}
	}

	return origins
}
