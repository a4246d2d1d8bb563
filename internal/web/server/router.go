package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/web/middleware"
)

// HealthPath answers liveness probes and is not logged
const HealthPath = "/health"

// Options configures NewRouter
type Options struct {
	Logger *zap.Logger
	// Routes registers the application routes
	Routes func(r chi.Router)
}

// NewRouter creates a chi router with request IDs, request logging and
// panic recovery, a health endpoint and JSON 404/405 responses
func NewRouter(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger, HealthPath))
	r.Use(middleware.Recovery(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Routes != nil {
		opts.Routes(r)
	}
	return r
}
