// Package mcp exposes the NoteHub operations as Model Context Protocol tools
// over the Streamable HTTP transport.
package mcp

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/notehub-client/internal/logutil"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
)

const (
	maxMCPBodyBytes           = 1 << 20
	mcpDebugBodyLogLimitBytes = 8 * 1024
)

// Deps wires a Server. Cache and Recorder are optional.
type Deps struct {
	Service  notehub.Service
	Cache    *querycache.Cache
	PerPage  int
	Recorder Recorder
	Version  string
}

// Server wraps the MCP server with NoteHub handling.
type Server struct {
	mcpServer   *mcp.Server
	handler     *Handler
	httpHandler http.Handler
}

// NewServer creates the MCP server with every NoteHub tool and prompt.
func NewServer(deps Deps) *Server {
	handler := NewHandler(deps.Service, deps.Cache, deps.PerPage, deps.Recorder)
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "notehub",
			Version: version,
		},
		nil,
	)
	for _, tool := range ToolDefinitions() {
		mcp.AddTool(mcpServer, tool, handler.createToolHandler(tool.Name))
	}
	handler.registerPrompts(mcpServer)

	httpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return mcpServer },
		&mcp.StreamableHTTPOptions{
			// Every call is independent; no server-initiated messages.
			JSONResponse: true,
			Stateless:    true,
		},
	)

	return &Server{
		mcpServer:   mcpServer,
		handler:     handler,
		httpHandler: httpHandler,
	}
}

type mcpResponseLogger struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
	body       []byte
}

func newMCPResponseLogger(w http.ResponseWriter) *mcpResponseLogger {
	return &mcpResponseLogger{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *mcpResponseLogger) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.statusCode = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *mcpResponseLogger) Write(p []byte) (int, error) {
	w.wrote = true
	if remaining := mcpDebugBodyLogLimitBytes - len(w.body); remaining > 0 {
		w.body = append(w.body, p[:min(len(p), remaining)]...)
	}
	return w.ResponseWriter.Write(p)
}

func (w *mcpResponseLogger) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *mcpResponseLogger) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// formatMCPHeadersForLog redacts credentials before headers reach the log.
func formatMCPHeadersForLog(h http.Header) string {
	return logutil.FormatHeadersForLog(h)
}

// isASCII reports whether s is non-blank printable ASCII.
func isASCII(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func writeJSONRPCError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"jsonrpc":"2.0","error":{"code":-32603,"message":`+quoteJSON(message)+`},"id":null}`)
}

func quoteJSON(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r < 0x20 {
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ServeHTTP implements http.Handler for the Streamable HTTP transport: POST
// carries JSON-RPC messages, DELETE ends a session, GET is refused because
// the server never pushes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := obs.From(r.Context()).With("pkg", "mcp")

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, Last-Event-ID, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost, http.MethodDelete:
	default:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := r.Header.Get("Mcp-Session-Id"); id != "" && !isASCII(id) {
		writeJSONRPCError(w, http.StatusBadRequest, "invalid Mcp-Session-Id")
		return
	}

	var reqBody []byte
	if r.Body != nil && r.Method == http.MethodPost {
		var err error
		reqBody, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("mcp_request_too_large", "limit", maxMCPBodyBytes)
				writeJSONRPCError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			logger.Error("mcp_request_read_failed", "error", err)
			writeJSONRPCError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	logger.Debug("mcp_request",
		"method", r.Method,
		"headers", formatMCPHeadersForLog(r.Header),
		"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), reqBody, mcpDebugBodyLogLimitBytes),
	)

	respLogger := newMCPResponseLogger(w)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("mcp_handler_panic", "panic", rec)
				if !respLogger.wrote {
					writeJSONRPCError(respLogger, http.StatusInternalServerError, "Internal server error")
				}
			}
		}()
		s.httpHandler.ServeHTTP(respLogger, r)
	}()

	if !respLogger.wrote {
		logger.Error("mcp_no_response", "method", r.Method)
		writeJSONRPCError(respLogger, http.StatusInternalServerError, "MCP handler returned without writing response")
		return
	}
	if respLogger.statusCode >= http.StatusBadRequest {
		logger.Warn("mcp_request_failed",
			"status", respLogger.statusCode,
			"response", logutil.FormatBodyForLog(respLogger.Header().Get("Content-Type"), respLogger.body, mcpDebugBodyLogLimitBytes),
		)
	}
}
