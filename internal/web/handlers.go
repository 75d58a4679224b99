package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notehub-client/internal/errs"
	"github.com/kuitang/notehub-client/internal/listview"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/noteform"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
	"github.com/kuitang/notehub-client/internal/ratelimit"
)

const (
	defaultRenderWait = 3 * time.Second
	defaultHeartbeat  = 15 * time.Second

	// fetchHeader marks requests sent by the page script; they get 204
	// instead of a redirect.
	fetchHeader = "X-Requested-With"

	rateLimitedMessage  = "You are creating notes too quickly. Please wait a moment."
	noteLoadFailed      = "Could not load note. Please try again."
	noteDeleteFailed    = "Could not delete note. Please try again."
	noteNotFoundMessage = "Note not found"
)

// Recorder receives UI events. *metrics.Manager implements it.
type Recorder interface {
	RateLimited()
	NoteDeleted()
}

// Config wires a Handler. Renderer, Service, Cache and Sessions are
// required.
type Config struct {
	Renderer      *Renderer
	Service       notehub.Service
	Cache         *querycache.Cache
	Sessions      *Sessions
	CreateLimiter *ratelimit.RateLimiter // optional, keyed by session
	Recorder      Recorder               // optional
	// RenderWait bounds how long a full render waits for an in-flight list
	// fetch before showing the current state.
	RenderWait time.Duration
	Heartbeat  time.Duration
}

// Handler provides HTTP handlers for the UI pages.
type Handler struct {
	renderer   *Renderer
	svc        notehub.Service
	cache      *querycache.Cache
	sessions   *Sessions
	limiter    *ratelimit.RateLimiter
	recorder   Recorder
	renderWait time.Duration
	heartbeat  time.Duration
}

// NewHandler creates a UI handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RenderWait <= 0 {
		cfg.RenderWait = defaultRenderWait
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	return &Handler{
		renderer:   cfg.Renderer,
		svc:        cfg.Service,
		cache:      cfg.Cache,
		sessions:   cfg.Sessions,
		limiter:    cfg.CreateLimiter,
		recorder:   cfg.Recorder,
		renderWait: cfg.RenderWait,
		heartbeat:  cfg.Heartbeat,
	}
}

// RegisterRoutes registers all UI routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleRoot)

	mux.HandleFunc("GET /notes", h.HandleNotesList)
	mux.HandleFunc("GET /notes/panel", h.HandlePanel)
	mux.HandleFunc("GET /notes/events", h.HandleEvents)
	mux.HandleFunc("POST /notes/search", h.HandleSearch)
	mux.HandleFunc("POST /notes/page", h.HandlePage)
	mux.HandleFunc("POST /notes/modal/open", h.HandleModalOpen)
	mux.HandleFunc("POST /notes/modal/close", h.HandleModalClose)
	mux.HandleFunc("POST /notes", h.HandleCreateNote)

	mux.HandleFunc("GET /notes/{id}", h.HandleViewNote)
	mux.HandleFunc("POST /notes/{id}/delete", h.HandleDeleteNote)
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title string
	Flash string
}

// ListPageData is the data for the list page and its panel fragment.
type ListPageData struct {
	PageData
	View         listview.View
	Form         noteform.Form
	FormDisabled bool
	Tags         []notes.Tag
	TitleMax     int
	ContentMax   int
}

// NoteViewData contains data for the note detail page.
type NoteViewData struct {
	PageData
	Note notes.Note
}

// ErrorPageData contains data for the error page.
type ErrorPageData struct {
	PageData
	Error     string
	ErrorCode string
}

// HandleRoot redirects to the list.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandleNotesList renders the full list page. The optional search and page
// query parameters let the page work without scripts; search given this way
// skips the debounce.
func (h *Handler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	q := r.URL.Query()
	if q.Has("search") {
		sess.List.SetSearch(q.Get("search"))
		sess.List.FlushSearch()
	}
	if q.Has("page") {
		if page, err := strconv.Atoi(q.Get("page")); err == nil {
			sess.List.SetPage(page)
		}
	}
	h.renderList(w, r, sess, http.StatusOK, "")
}

// HandlePanel renders just the list panel.
func (h *Handler) HandlePanel(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	view := awaitSettled(r.Context(), sess.List, h.renderWait)
	if err := h.renderer.RenderPartial(w, http.StatusOK, "notes/list.html", "panel", h.listData(sess, view, "")); err != nil {
		obs.From(r.Context()).With("pkg", "web").Error("render_failed", "template", "panel", "error", err)
		http.Error(w, "Failed to render panel", http.StatusInternalServerError)
	}
}

// HandleEvents streams the panel as server-sent events whenever the list
// state changes.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	logger := obs.From(r.Context()).With("pkg", "web", "session_id", sess.ID)
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	done := h.sessions.StreamStarted(sess)
	defer done()
	views, unsubscribe := sess.List.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(v listview.View) bool {
		html, err := h.renderer.RenderPartialString("notes/list.html", "panel", h.listData(sess, v, ""))
		if err != nil {
			logger.Error("render_failed", "template", "panel", "error", err)
			return false
		}
		if err := writeEvent(w, "panel", html); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(sess.List.View()) {
		return
	}
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	logger.Debug("event_stream_opened")
	for {
		select {
		case <-r.Context().Done():
			logger.Debug("event_stream_closed")
			return
		case v, ok := <-views:
			if !ok || !send(v) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := w.Write([]byte(b.String()))
	return err
}

// HandleSearch records raw search input; the coordinator debounces it.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	sess.List.SetSearch(r.PostFormValue("search"))
	h.acknowledge(w, r)
}

// HandlePage switches the list page.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	page, err := strconv.Atoi(r.PostFormValue("page"))
	if err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	sess.List.SetPage(page)
	h.acknowledge(w, r)
}

// HandleModalOpen shows the create form.
func (h *Handler) HandleModalOpen(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.List.OpenModal()
	h.acknowledge(w, r)
}

// HandleModalClose discards the form and hides it. While a submission is
// pending the modal stays open.
func (h *Handler) HandleModalClose(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	if sess.Form.Cancel() {
		sess.List.CloseModal()
	}
	h.acknowledge(w, r)
}

// HandleCreateNote submits the create form.
func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	logger := obs.From(r.Context()).With("pkg", "web", "session_id", sess.ID)

	if h.limiter != nil && !h.limiter.Allow(sess.ID) {
		if h.recorder != nil {
			h.recorder.RateLimited()
		}
		logger.Warn("create_rate_limited")
		w.Header().Set("Retry-After", strconv.Itoa(ratelimit.DefaultRetryAfterSeconds))
		sess.List.OpenModal()
		h.renderList(w, r, sess, http.StatusTooManyRequests, rateLimitedMessage)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	out := sess.Form.Submit(r.Context(), notes.CreateParams{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
		Tag:     notes.Tag(r.PostFormValue("tag")),
	})

	switch out.Result {
	case noteform.Created:
		http.Redirect(w, r, "/notes", http.StatusSeeOther)
	case noteform.Invalid:
		sess.List.OpenModal()
		h.renderList(w, r, sess, http.StatusUnprocessableEntity, "")
	case noteform.Busy:
		h.renderList(w, r, sess, http.StatusConflict, "")
	default:
		sess.List.OpenModal()
		h.renderList(w, r, sess, http.StatusBadGateway, "")
	}
}

// HandleViewNote renders one note with its content as markdown.
func (h *Handler) HandleViewNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.renderUpstreamError(w, r, err, noteLoadFailed)
		return
	}
	data := NoteViewData{PageData: PageData{Title: note.Title}, Note: note}
	if err := h.renderer.Render(w, http.StatusOK, "notes/view.html", data); err != nil {
		obs.From(r.Context()).With("pkg", "web").Error("render_failed", "template", "notes/view.html", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleDeleteNote deletes a note, invalidates cached lists and returns to
// the list.
func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	id := r.PathValue("id")
	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		h.renderUpstreamError(w, r, err, noteDeleteFailed)
		return
	}
	h.cache.InvalidateNamespace(querycache.NamespaceNotes)
	sess.List.Invalidate()
	if h.recorder != nil {
		h.recorder.NoteDeleted()
	}
	obs.From(r.Context()).With("pkg", "web").Info("note_deleted", "note_id", deleted.ID)
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func (h *Handler) renderUpstreamError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errs.Is(err, errs.NotFound) {
		h.renderer.RenderError(w, http.StatusNotFound, noteNotFoundMessage)
		return
	}
	obs.From(r.Context()).With("pkg", "web").Warn("notehub_call_failed", "path", r.URL.Path, "error", err)
	h.renderer.RenderError(w, http.StatusBadGateway, message)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, sess *Session, status int, flash string) {
	view := awaitSettled(r.Context(), sess.List, h.renderWait)
	if err := h.renderer.Render(w, status, "notes/list.html", h.listData(sess, view, flash)); err != nil {
		obs.From(r.Context()).With("pkg", "web").Error("render_failed", "template", "notes/list.html", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (h *Handler) listData(sess *Session, view listview.View, flash string) ListPageData {
	form := sess.Form.Snapshot()
	return ListPageData{
		PageData:     PageData{Title: "Notes", Flash: flash},
		View:         view,
		Form:         form,
		FormDisabled: form.Submitting,
		Tags:         notes.AllTags,
		TitleMax:     notes.TitleMaxLen,
		ContentMax:   notes.ContentMaxLen,
	}
}

// acknowledge answers state-changing posts: 204 for the page script, a
// redirect back to the list for plain forms.
func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(fetchHeader) != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

// awaitSettled waits up to timeout for an in-flight list fetch so full
// renders show data rather than a loading state.
func awaitSettled(ctx context.Context, list *listview.Coordinator, timeout time.Duration) listview.View {
	views, unsubscribe := list.Subscribe()
	defer unsubscribe()
	v := list.View()
	if !v.Fetching {
		return v
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for v.Fetching {
		select {
		case <-ctx.Done():
			return v
		case <-timer.C:
			return v
		case next, ok := <-views:
			if !ok {
				return v
			}
			v = next
		}
	}
	return v
}
