package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates the HTTP router with all routes configured, wrapped
// in the recovery, logging and CORS middleware chain. Routing relies on
// Go 1.22+ ServeMux method patterns.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /health", h.Health},
		{"POST /projects", h.CreateProject},
		{"GET /projects/{id}", h.GetProject},
		{"POST /projects/{id}/cancel", h.CancelProject},
		{"POST /users", h.CreateUser},
	}
	for _, r := range routes {
		mux.HandleFunc(r.pattern, r.handler)
	}

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
