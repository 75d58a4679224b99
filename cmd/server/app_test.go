package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/notehub-client/internal/config"
	"github.com/kuitang/notehub-client/internal/metrics"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/ratelimit"
)

func fakeConfig() *config.Config {
	return &config.Config{
		ListenAddr:         "127.0.0.1:0",
		FakeAPI:            true,
		RequestTimeout:     5 * time.Second,
		PerPage:            12,
		SearchDebounce:     500 * time.Millisecond,
		CacheSizeMB:        1,
		CacheTTL:           time.Minute,
		SessionIdleTimeout: time.Minute,
		RateLimitConfig:    ratelimit.DefaultConfig,
	}
}

func startApp(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	reg := metrics.SetupPrometheus()
	a, err := newApp(context.Background(), cfg, metrics.NewManager("notehub", "", reg), reg)
	require.NoError(t, err)
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		ts.Close()
		a.Close()
	})
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApp_FakeAPIServesSeededList(t *testing.T) {
	ts := startApp(t, fakeConfig())

	status, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, body = get(t, ts.URL+"/notes")
	require.Equal(t, http.StatusOK, status)
	for _, p := range sampleNotes {
		assert.Contains(t, body, p.Title)
	}

	status, body = get(t, ts.URL+"/notes?search=groceries")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Groceries")
	assert.NotContains(t, body, "Weekly sync")

	status, body = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "notehub_http_requests_total")
	assert.Contains(t, body, "notehub_upstream_requests_total")
}

func TestApp_MCPMounted(t *testing.T) {
	ts := startApp(t, fakeConfig())

	resp, err := http.Get(ts.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"note_list","arguments":{"search":"weekly"}}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", body)
	assert.Contains(t, string(body), "Weekly sync")
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestApp_MCPRouteMethods(t *testing.T) {
	ts := startApp(t, fakeConfig())

	do := func(method string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+"/mcp", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	// Mounted methods reach the MCP handler, which sets CORS headers.
	for _, method := range []string{http.MethodGet, http.MethodOptions} {
		resp := do(method)
		assert.Equal(t, "POST, DELETE, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"), method)
	}
	assert.Equal(t, http.StatusNoContent, do(http.MethodOptions).StatusCode)
	get := do(http.MethodGet)
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
	assert.Equal(t, "POST, DELETE, OPTIONS", get.Header.Get("Allow"))

	// Anything else is rejected by the router before MCP sees it.
	put := do(http.MethodPut)
	assert.Equal(t, http.StatusMethodNotAllowed, put.StatusCode)
	assert.Empty(t, put.Header.Get("Access-Control-Allow-Methods"))
}

func TestNewApp_MissingTokenIsFatal(t *testing.T) {
	cfg := fakeConfig()
	cfg.FakeAPI = false
	cfg.NoteHubBaseURL = config.DefaultBaseURL
	cfg.NoteHubToken = "  "

	reg := metrics.SetupPrometheus()
	_, err := newApp(context.Background(), cfg, metrics.NewManager("notehub", "", reg), reg)
	require.ErrorIs(t, err, notehub.ErrMissingToken)
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "203.0.113.7", clientAddr(r))

	r.RemoteAddr = "not-a-host-port"
	assert.Equal(t, "not-a-host-port", clientAddr(r))
}
