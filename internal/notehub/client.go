// Package notehub is the HTTP client for the remote NoteHub notes API.
//
// Each operation is one request/response round trip with the bearer token
// attached. Nothing is retried; failures come back as errs-coded errors.
package notehub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notehub-client/internal/errs"
	"github.com/kuitang/notehub-client/internal/logutil"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
)

const (
	// DefaultBaseURL is the public NoteHub API.
	DefaultBaseURL = "https://notehub-public.goit.study/api"

	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
	logBodyBytes     = 2048
)

// ErrMissingToken is returned by New when no bearer token is configured.
var ErrMissingToken = errors.New("notehub token is missing: set NOTEHUB_TOKEN (or NEXT_PUBLIC_NOTEHUB_TOKEN)")

// Service is the set of NoteHub operations the rest of the app depends on.
type Service interface {
	List(ctx context.Context, p notes.ListParams) (notes.PageResult, error)
	Get(ctx context.Context, id string) (notes.Note, error)
	Create(ctx context.Context, p notes.CreateParams) (notes.Note, error)
	Delete(ctx context.Context, id string) (notes.Note, error)
}

// Observer receives one sample per round trip. status is 0 when no response
// arrived.
type Observer interface {
	ObserveUpstream(op string, status int, dur time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; its Transport is wrapped, not replaced
	Observer   Observer     // optional
}

// Client talks to NoteHub.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
}

var _ Service = (*Client)(nil)

// New builds a client. It fails with ErrMissingToken when cfg.Token is blank,
// so a misconfigured process stops before serving anything.
func New(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("notehub base URL %q must be absolute", base)
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		*hc = *cfg.HTTPClient
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	} else if hc.Timeout == 0 {
		hc.Timeout = defaultTimeout
	}
	baseTransport := hc.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	hc.Transport = &bearerTransport{token: token, base: baseTransport}

	return &Client{baseURL: base, http: hc, observer: cfg.Observer}, nil
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// List fetches one page. The search parameter is omitted when blank.
func (c *Client) List(ctx context.Context, p notes.ListParams) (notes.PageResult, error) {
	p = p.Normalized()
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("perPage", strconv.Itoa(p.PerPage))
	if p.Search != "" {
		q.Set("search", p.Search)
	}

	var out notes.PageResult
	if err := c.do(ctx, "list", http.MethodGet, "/notes", q, nil, &out); err != nil {
		return notes.PageResult{}, err
	}
	if out.Notes == nil {
		out.Notes = []notes.Note{}
	}
	return out, nil
}

// Get fetches one note; an unknown id yields an errs.NotFound error.
func (c *Client) Get(ctx context.Context, id string) (notes.Note, error) {
	if strings.TrimSpace(id) == "" {
		return notes.Note{}, errs.New(errs.InvalidArgument, "note id is required")
	}
	var out notes.Note
	if err := c.do(ctx, "get", http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return notes.Note{}, err
	}
	return out, nil
}

// Create sends p as given; callers trim and validate first.
func (c *Client) Create(ctx context.Context, p notes.CreateParams) (notes.Note, error) {
	var out notes.Note
	if err := c.do(ctx, "create", http.MethodPost, "/notes", nil, p, &out); err != nil {
		return notes.Note{}, err
	}
	return out, nil
}

// Delete removes a note and returns its last representation.
func (c *Client) Delete(ctx context.Context, id string) (notes.Note, error) {
	if strings.TrimSpace(id) == "" {
		return notes.Note{}, errs.New(errs.InvalidArgument, "note id is required")
	}
	var out notes.Note
	if err := c.do(ctx, "delete", http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return notes.Note{}, err
	}
	return out, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		if reqBody, err = json.Marshal(body); err != nil {
			return errs.Wrap(errs.Internal, "encode request", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(reqBody))
	if err != nil {
		return errs.Wrap(errs.Internal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := obs.From(ctx).With("pkg", "notehub", "op", op)
	logger.Debug("notehub_request",
		"method", method,
		"url", logutil.FormatURLForLog(req.URL),
		"headers", logutil.FormatHeadersForLog(req.Header),
		"body", logutil.FormatBodyForLog("application/json", reqBody, logBodyBytes),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Debug("notehub_cancelled", "error", ctxErr)
			return errs.Wrap(errs.Unavailable, "request cancelled", ctxErr)
		}
		logger.Warn("notehub_unreachable", "error", err)
		return errs.Wrap(errs.Unavailable, "NoteHub is unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	dur := time.Since(start)
	c.observe(op, resp.StatusCode, dur)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "read NoteHub response", err)
	}

	logger.Debug("notehub_response",
		"status", resp.StatusCode,
		"dur_ms", float64(dur.Microseconds())/1000.0,
		"body", logutil.FormatBodyForLog(resp.Header.Get("Content-Type"), respBody, logBodyBytes),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		logger.Warn("notehub_error_status", "status", resp.StatusCode, "message", logutil.TruncateForLog(msg, 200))
		return errs.Upstream(resp.StatusCode, msg)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.Internal, "decode NoteHub response", err)
	}
	return nil
}

func (c *Client) observe(op string, status int, dur time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, dur)
	}
}
