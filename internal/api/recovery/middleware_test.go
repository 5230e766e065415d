package recovery

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecoversPanic(t *testing.T) {
	before := testutil.ToFloat64(panicsTotal.WithLabelValues("messages"))
	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/?sessionId=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error","code":500,"message":"internal error while handling MCP request"}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(panicsTotal.WithLabelValues("messages")))
}

func TestMiddleware_StartedStreamIsNotOverwritten(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("event: endpoint\n\n"))
		w.(http.Flusher).Flush()
		panic("stream broke")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sse", nil))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event: endpoint\n\n", rec.Body.String())
}

func TestMiddleware_AbortHandlerPropagates(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestMiddleware_PassesThrough(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouteOf(t *testing.T) {
	assert.Equal(t, "sse", routeOf("/sse"))
	assert.Equal(t, "messages", routeOf("/messages/"))
	assert.Equal(t, "other", routeOf("/health"))
}
