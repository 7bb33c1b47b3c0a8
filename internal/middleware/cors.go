package middleware

import (
	"net/http"

	"opsboard-backend/internal/config"

	"github.com/rs/cors"
)

// NewCORS builds the CORS middleware from server config. Browsers may read
// the request id header so clients can quote it in bug reports.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CorsAllowedOrigins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   cfg.Server.CorsAllowedHeaders,
		ExposedHeaders:   []string{RequestIDHeader}, // set by RequestLogging
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	})

	return c.Handler
}
