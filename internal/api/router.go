package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/51302890/mcp-mem0/internal/api/recovery"
	"github.com/51302890/mcp-mem0/internal/api/respond"
)

// Routes are the handlers mounted by NewRouter.
type Routes struct {
	SSE     http.Handler // GET /sse
	Message http.Handler // POST /messages/
	Health  *HealthHandler
}

// NewRouter mounts the MCP SSE endpoints and the side routes.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery.Middleware)
	r.Use(accessLog)

	r.Handle("/sse", rt.SSE).Methods(http.MethodGet)
	r.PathPrefix("/messages").Handler(rt.Message).Methods(http.MethodPost)
	r.HandleFunc("/health", rt.Health.CheckHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.WriteError(w, http.StatusNotFound, "no such route")
	})
	return r
}

// accessLog logs short requests at debug level. The SSE stream is logged
// when it closes.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
