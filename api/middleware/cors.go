package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/commitforge/commitforge-backend/pkg/config"
)

// CORS allows the dashboard frontend plus local development origins.
func CORS(cfg config.FrontendConfig) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000"}
	if cfg.URL != "" && cfg.URL != origins[0] {
		origins = append(origins, cfg.URL)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
