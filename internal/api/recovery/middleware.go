// Package recovery keeps a panicking MCP request from taking the SSE server down.
package recovery

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/51302890/mcp-mem0/internal/api/respond"
)

var panicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mem0",
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Recovered handler panics by route.",
	},
	[]string{"route"},
)

// trackingWriter remembers whether the response has started.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.started = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.started = true
		f.Flush()
	}
}

// Middleware logs a panic with the MCP session it belongs to and answers
// with a JSON 500. A stream that already sent headers is only closed.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			route := routeOf(r.URL.Path)
			panicsTotal.WithLabelValues(route).Inc()
			log.Error().
				Interface("panic", rec).
				Str("route", route).
				Str("method", r.Method).
				Str("session_id", r.URL.Query().Get("sessionId")).
				Str("remote", r.RemoteAddr).
				Bool("stream_started", tw.started).
				Bytes("stack", debug.Stack()).
				Msg("MCP handler panicked")
			if !tw.started {
				respond.WriteError(w, http.StatusInternalServerError, "internal error while handling MCP request")
			}
		}()
		next.ServeHTTP(tw, r)
	})
}

func routeOf(path string) string {
	switch {
	case path == "/sse":
		return "sse"
	case strings.HasPrefix(path, "/messages"):
		return "messages"
	default:
		return "other"
	}
}
