package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var allowedOrigins = []string{
	"http://localhost:3000",      // local console dev server
	"https://console.hostlane.io",
	"https://admin.hostlane.io",
}

// CORS applies the browser origin policy for the console and admin UIs.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
