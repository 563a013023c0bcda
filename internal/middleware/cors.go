package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the site and admin origins to call the API with
// credentials. Other origins get no CORS headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler
}
