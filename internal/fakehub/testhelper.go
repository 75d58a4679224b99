package fakehub

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestToken is the bearer token accepted by TestServer.
const TestToken = "fakehub-test-token"

// NewMux returns the NoteHub routes as a standalone handler.
func NewMux(h *Handler) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// TestServer starts an in-memory NoteHub on a test HTTP server.
// The server is closed automatically when the test completes.
func TestServer(t testing.TB) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(NewStore(nil), TestToken)
	ts := httptest.NewServer(NewMux(h))
	t.Cleanup(ts.Close)
	return ts, h
}
