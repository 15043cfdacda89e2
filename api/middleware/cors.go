package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/talentloop/talentloop-backend/api/responses"
)

// CORS lets the dashboard origins call the API with credentials. Replay and
// throttling headers are exposed so the client can react to them.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			IdempotencyKeyHeader,
			responses.RequestIDHeader,
		},
		ExposedHeaders: []string{
			responses.RequestIDHeader,
			IdempotentReplayHeader,
			"Retry-After",
			RateLimitLimitHeader,
			RateLimitRemainingHeader,
		},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
