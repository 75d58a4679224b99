// Package fakehub is an in-memory stand-in for the NoteHub HTTP API. It backs
// --fake-api development mode and every test that needs a remote.
package fakehub

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kuitang/notehub-client/internal/clock"
	"github.com/kuitang/notehub-client/internal/notes"
)

// ErrNotFound is returned for unknown note ids.
var ErrNotFound = errors.New("note not found")

// Store holds notes in memory, newest first.
type Store struct {
	mu    sync.RWMutex
	notes map[string]notes.Note
	clock clock.Clock
}

// NewStore creates an empty store. A nil clk uses wall time.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{notes: make(map[string]notes.Note), clock: clk}
}

// Create validates p and stores a new note with server-assigned fields.
func (s *Store) Create(p notes.CreateParams) (notes.Note, error) {
	p = notes.Normalize(p)
	if res := notes.Validate(p); !res.OK() {
		return notes.Note{}, res
	}
	now := s.clock.Now().UTC()
	n := notes.Note{
		ID:        uuid.NewString(),
		Title:     p.Title,
		Content:   p.Content,
		Tag:       p.Tag,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
	return n, nil
}

// Get returns the note with id.
func (s *Store) Get(id string) (notes.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return notes.Note{}, ErrNotFound
	}
	return n, nil
}

// Delete removes and returns the note with id.
func (s *Store) Delete(id string) (notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return notes.Note{}, ErrNotFound
	}
	delete(s.notes, id)
	return n, nil
}

// List filters by case-insensitive substring on title or content, orders
// newest first and slices out one page.
func (s *Store) List(p notes.ListParams) notes.PageResult {
	p = p.Normalized()
	needle := strings.ToLower(p.Search)

	s.mu.RLock()
	matched := make([]notes.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if needle == "" ||
			strings.Contains(strings.ToLower(n.Title), needle) ||
			strings.Contains(strings.ToLower(n.Content), needle) {
			matched = append(matched, n)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	// Page and perPage come straight from the query string, so nothing here
	// multiplies or adds them before they are bounded by len(matched).
	totalPages := 1
	if len(matched) > 0 {
		totalPages = (len(matched)-1)/p.PerPage + 1
	}
	start := len(matched)
	if p.Page <= totalPages {
		start = (p.Page - 1) * p.PerPage
	}
	end := len(matched)
	if p.PerPage < end-start {
		end = start + p.PerPage
	}

	page := make([]notes.Note, end-start)
	copy(page, matched[start:end])
	return notes.PageResult{Notes: page, TotalPages: totalPages}
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}
