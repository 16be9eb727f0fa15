// Package routes assembles the public surface: the unary proxy endpoint, the
// WebSocket relay endpoint, health, and metrics.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chaingate/gateway/auth"
	"chaingate/gateway/middleware"
)

type Config struct {
	Proxy         http.Handler
	Relay         http.Handler
	Guard         *auth.Guard
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New builds the chi router. The proxy endpoint accepts the credential as a
// path segment, header, or query parameter; the relay accepts it as a path
// segment only, and runs its own guard so rejections arrive as WebSocket
// close frames rather than HTTP errors.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/rpc/{network}", func(sr chi.Router) {
		// Auth wraps the endpoints directly so the apiKey route parameter is
		// visible to the credential extractors.
		proxy := middleware.Auth(cfg.Guard)(cfg.Proxy)
		sr.Method(http.MethodPost, "/", proxy)
		sr.Method(http.MethodPost, "/{apiKey}", proxy)
	})

	r.Get("/ws/{network}/{apiKey}", cfg.Relay.ServeHTTP)

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r
}
