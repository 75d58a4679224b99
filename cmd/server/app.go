package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kuitang/notehub-client/internal/config"
	"github.com/kuitang/notehub-client/internal/fakehub"
	"github.com/kuitang/notehub-client/internal/listview"
	mcpserver "github.com/kuitang/notehub-client/internal/mcp"
	"github.com/kuitang/notehub-client/internal/metrics"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/noteform"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
	"github.com/kuitang/notehub-client/internal/ratelimit"
	"github.com/kuitang/notehub-client/internal/web"
)

// fakeAPIToken is the bearer token the in-process fake NoteHub accepts.
const fakeAPIToken = "fake-api-token"

// mcpRateLimit throttles MCP POSTs per client address. Reads go through it
// too, so it is looser than the browser create limit.
var mcpRateLimit = ratelimit.Config{RPS: 5, Burst: 20}

// app is the fully wired HTTP surface. Close releases background work in
// reverse order of construction.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Handler() http.Handler { return a.handler }

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newApp(ctx context.Context, cfg *config.Config, m *metrics.Manager, reg *prometheus.Registry) (_ *app, err error) {
	logger := obs.Pkg("main")
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	baseURL, token := cfg.NoteHubBaseURL, cfg.NoteHubToken
	if cfg.FakeAPI {
		fakeURL, stop, err := startFakeHub()
		if err != nil {
			return nil, fmt.Errorf("start fake NoteHub: %w", err)
		}
		a.closers = append(a.closers, stop)
		baseURL, token = fakeURL, fakeAPIToken
		logger.Info("fake_api_started", "url", fakeURL)
	}

	client, err := notehub.New(notehub.Config{
		BaseURL:  baseURL,
		Token:    token,
		Timeout:  cfg.RequestTimeout,
		Observer: m,
	})
	if err != nil {
		if errors.Is(err, notehub.ErrMissingToken) {
			logger.Error("notehub_token_missing", "env", config.TokenEnv)
		}
		return nil, err
	}

	cache := querycache.New(querycache.Options{
		SizeBytes: cfg.CacheSizeMB << 20,
		TTL:       cfg.CacheTTL,
		Recorder:  m,
	})

	createLimiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig, nil)
	a.closers = append(a.closers, createLimiter.Stop)
	mcpLimiter := ratelimit.NewRateLimiter(mcpRateLimit, nil)
	a.closers = append(a.closers, mcpLimiter.Stop)

	sessions := web.NewSessions(web.SessionsConfig{
		Factory: web.NewListSessionFactory(
			func(id string) listview.Deps {
				return listview.Deps{
					Service:   client,
					Cache:     cache,
					PerPage:   cfg.PerPage,
					Debounce:  cfg.SearchDebounce,
					Recorder:  m,
					SessionID: id,
				}
			},
			func(string) noteform.Deps {
				return noteform.Deps{Service: client, Cache: cache, Recorder: m}
			},
		),
		IdleTimeout: cfg.SessionIdleTimeout,
		Recorder:    m,
	})
	a.closers = append(a.closers, sessions.Close)

	renderer, err := web.NewRenderer(cfg.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	if cfg.WatchTemplates {
		watchCtx, cancel := context.WithCancel(ctx)
		a.closers = append(a.closers, cancel)
		if err := renderer.Watch(watchCtx); err != nil {
			return nil, fmt.Errorf("watch templates: %w", err)
		}
	}

	mux := http.NewServeMux()
	web.NewHandler(web.Config{
		Renderer:      renderer,
		Service:       client,
		Cache:         cache,
		Sessions:      sessions,
		CreateLimiter: createLimiter,
		Recorder:      m,
	}).RegisterRoutes(mux)

	mcpHandler := mcpserver.NewServer(mcpserver.Deps{
		Service:  client,
		Cache:    cache,
		PerPage:  cfg.PerPage,
		Recorder: m,
		Version:  version,
	})
	mountMCPRoute(mux, "/mcp", ratelimit.Middleware(mcpLimiter, clientAddr, http.MethodPost)(mcpHandler))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler(reg))

	a.handler = obs.RequestContextMiddleware(obs.AccessLogMiddleware("http", m, mux))
	return a, nil
}

// mountMCPRoute registers every Streamable HTTP method on path; the MCP
// handler answers the ones it does not support itself.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
		mux.Handle(method+" "+path, handler)
	}
}

// clientAddr keys MCP rate limiting by remote host.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// startFakeHub serves an in-memory NoteHub on a loopback port, seeded with a
// few notes so the UI has something to show.
func startFakeHub() (baseURL string, stop func(), err error) {
	hub := fakehub.NewHandler(fakehub.NewStore(nil), fakeAPIToken)
	for _, p := range sampleNotes {
		if _, err := hub.Store().Create(p); err != nil {
			return "", nil, err
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: fakehub.NewMux(hub)}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Pkg("fakehub").Error("fake_api_stopped", "error", err)
		}
	}()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}

var sampleNotes = []notes.CreateParams{
	{Title: "Welcome to NoteHub", Content: "This is the **fake** API.\nNotes live in memory until the server stops.", Tag: notes.TagTodo},
	{Title: "Weekly sync", Content: "- status\n- blockers\n- next steps", Tag: notes.TagMeeting},
	{Title: "Groceries", Content: "milk\neggs\nbread", Tag: notes.TagShopping},
}
