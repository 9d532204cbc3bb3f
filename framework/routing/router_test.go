package routing_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhaber/guice/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func newRouter() *routing.Router {
	return routing.New(zerolog.Nop())
}

func do(t *testing.T, router *routing.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── HTTP verbs ────────────────────────────────────────────────────────────────

func TestRouter_Verbs(t *testing.T) {
	r := newRouter()
	r.Get("/hello", okHandler)
	r.Post("/users", okHandler)
	r.Delete("/users/{id}", okHandler)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/hello"},
		{http.MethodPost, "/users"},
		{http.MethodDelete, "/users/1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusOK, do(t, r, tt.method, tt.path).Code)
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	r := newRouter()
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/not-registered").Code)
}

// ── Route params ─────────────────────────────────────────────────────────────

func TestRouter_Param(t *testing.T) {
	r := newRouter()
	r.Get("/shadows/{abstract}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(routing.Param(req, "abstract")))
	})

	rr := do(t, r, http.MethodGet, "/shadows/mailer")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mailer", rr.Body.String())
}

// ── Prefix / Group ───────────────────────────────────────────────────────────

func TestRouter_Prefix(t *testing.T) {
	r := newRouter()
	r.Prefix("/debug", func(dbg *routing.Router) {
		dbg.Get("/bindings", okHandler)
	})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/debug/bindings").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/bindings").Code)
}

func TestRouter_Group_Middleware(t *testing.T) {
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	r := newRouter()
	r.Group(func(g *routing.Router) {
		g.Middleware(mw)
		g.Get("/protected", okHandler)
	})

	do(t, r, http.MethodGet, "/protected")
	assert.True(t, called, "expected middleware to be called")
}

// ── Recovery & logging ───────────────────────────────────────────────────────

func TestRouter_RecoversFromPanic(t *testing.T) {
	r := newRouter()
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	assert.Equal(t, http.StatusInternalServerError, do(t, r, http.MethodGet, "/boom").Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	r := routing.New(zerolog.New(&buf).Level(zerolog.DebugLevel))
	r.Get("/ping", okHandler)

	do(t, r, http.MethodGet, "/ping")
	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRouter_HandlerInterface(t *testing.T) {
	r := newRouter()
	r.Get("/ping", okHandler)
	var _ http.Handler = r.Handler()
}
