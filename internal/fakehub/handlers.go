package fakehub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
)

// Handler serves the NoteHub routes over a Store.
type Handler struct {
	store *Store
	token string

	mu       sync.Mutex
	failures []int // statuses to return for the next requests, in order
	lists    []notes.ListParams

	requests atomic.Int64
}

// NewHandler creates a handler that requires "Bearer <token>" on every request.
func NewHandler(store *Store, token string) *Handler {
	return &Handler{store: store, token: token}
}

// Store returns the backing store.
func (h *Handler) Store() *Store { return h.store }

// RegisterRoutes registers the NoteHub routes on mux, relative to its root.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /notes", h.guard(h.ListNotes))
	mux.HandleFunc("GET /notes/{id}", h.guard(h.GetNote))
	mux.HandleFunc("POST /notes", h.guard(h.CreateNote))
	mux.HandleFunc("DELETE /notes/{id}", h.guard(h.DeleteNote))
}

// FailNext makes the next len(statuses) requests fail with those statuses.
func (h *Handler) FailNext(statuses ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, statuses...)
}

// ListCalls returns the parameters of every accepted list request, oldest
// first.
func (h *Handler) ListCalls() []notes.ListParams {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]notes.ListParams(nil), h.lists...)
}

// Requests returns how many requests passed authentication.
func (h *Handler) Requests() int64 { return h.requests.Load() }

func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.token {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.requests.Add(1)

		if status, ok := h.popFailure(); ok {
			obs.From(r.Context()).With("pkg", "fakehub").Debug("injected_failure", "status", status, "path", r.URL.Path)
			writeError(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	}
}

func (h *Handler) popFailure() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.failures) == 0 {
		return 0, false
	}
	status := h.failures[0]
	h.failures = h.failures[1:]
	return status, true
}

// ListNotes handles GET /notes?page=&perPage=&search=
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := notes.ListParams{Search: q.Get("search")}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		params.Page = page
	}
	if v := q.Get("perPage"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > 100 {
			writeError(w, http.StatusBadRequest, "perPage must be between 1 and 100")
			return
		}
		params.PerPage = perPage
	}
	h.mu.Lock()
	h.lists = append(h.lists, params)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.store.List(params))
}

// GetNote handles GET /notes/{id}
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notes
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	note, err := h.store.Create(params)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// DeleteNote handles DELETE /notes/{id} and returns the removed note.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.store.Delete(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ErrorResponse is the NoteHub error body.
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeStoreError(w http.ResponseWriter, err error) {
	var verr notes.ValidationResult
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Note not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}
