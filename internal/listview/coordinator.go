// Package listview coordinates the paginated, searchable note list for one
// browser session: it owns page, search and modal state, debounces search
// input, fetches through the shared query cache and decides what the list
// panel should show.
package listview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kuitang/notehub-client/internal/clock"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
)

const (
	// DefaultDebounce is how long search input must be idle before it is
	// applied to the query.
	DefaultDebounce = 500 * time.Millisecond

	// ErrorMessage is shown in place of the list when the last fetch failed.
	ErrorMessage = "Something went wrong. Please try again."
	// LoadingMessage is shown while a fetch runs and no notes are visible.
	LoadingMessage = "Loading..."
	// EmptyMessage is shown when a page came back with no notes.
	EmptyMessage = "No notes found."
)

// Status is the single thing the list panel renders.
type Status int

const (
	StatusList Status = iota
	StatusError
	StatusLoading
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	case StatusEmpty:
		return "empty"
	default:
		return "list"
	}
}

// StaleRecorder counts fetch results dropped because a newer fetch started.
// *metrics.Manager implements it.
type StaleRecorder interface {
	StaleDiscarded()
}

// Deps wires a Coordinator. Service and Cache are required.
type Deps struct {
	Service   notehub.Service
	Cache     *querycache.Cache
	Clock     clock.Clock
	PerPage   int
	Debounce  time.Duration
	Recorder  StaleRecorder
	SessionID string
}

// View is an immutable snapshot of the list state.
type View struct {
	Page            int
	Search          string
	DebouncedSearch string
	ModalOpen       bool
	Notes           []notes.Note
	TotalPages      int
	Fetching        bool
	Status          Status
	ErrorMessage    string
	ShowPagination  bool
}

// Message is the text for non-list statuses.
func (v View) Message() string {
	switch v.Status {
	case StatusError:
		return ErrorMessage
	case StatusLoading:
		return LoadingMessage
	case StatusEmpty:
		return EmptyMessage
	default:
		return ""
	}
}

type queryKey struct {
	page   int
	search string
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	svc      notehub.Service
	cache    *querycache.Cache
	clock    clock.Clock
	perPage  int
	debounce time.Duration
	recorder StaleRecorder
	log      *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	page        int
	search      string
	debounced   string
	modalOpen   bool
	key         queryKey
	result      *notes.PageResult
	failed      bool
	fetching    bool
	generation  uint64
	cancelFetch context.CancelFunc
	timer       clock.Timer
	timerSeq    uint64
	subs        map[int]chan View
	nextSub     int
}

// New creates a coordinator and starts the fetch for page 1 with an empty
// search.
func New(deps Deps) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.PerPage <= 0 {
		deps.PerPage = notes.DefaultPerPage
	}
	if deps.Debounce <= 0 {
		deps.Debounce = DefaultDebounce
	}
	if deps.Cache == nil {
		deps.Cache = querycache.New(querycache.Options{})
	}
	logger := obs.Pkg("listview")
	if deps.SessionID != "" {
		logger = logger.With("session_id", deps.SessionID)
	}
	base, cancel := context.WithCancel(obs.WithSessionID(context.Background(), deps.SessionID))

	c := &Coordinator{
		svc:        deps.Service,
		cache:      deps.Cache,
		clock:      deps.Clock,
		perPage:    deps.PerPage,
		debounce:   deps.Debounce,
		recorder:   deps.Recorder,
		log:        logger,
		baseCtx:    base,
		cancelBase: cancel,
		page:       1,
		key:        queryKey{page: 1},
		subs:       make(map[int]chan View),
	}
	c.mu.Lock()
	c.startFetchLocked()
	c.mu.Unlock()
	return c
}

// SetSearch records raw search input. The page resets to 1 at once; the
// query only picks the text up after the debounce interval passes with no
// further input.
func (c *Coordinator) SetSearch(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || raw == c.search {
		return
	}
	c.search = raw
	c.page = 1
	c.armDebounceLocked()
	c.refreshLocked()
	c.notifyLocked()
}

// SetPage moves to page n (values below 1 become 1).
func (c *Coordinator) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	n = notes.SanitizePage(n)
	if n == c.page {
		return
	}
	c.page = n
	c.refreshLocked()
	c.notifyLocked()
}

// OpenModal shows the create form. The query is unaffected.
func (c *Coordinator) OpenModal() { c.setModal(true) }

// CloseModal hides the create form. The query is unaffected.
func (c *Coordinator) CloseModal() { c.setModal(false) }

func (c *Coordinator) setModal(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.modalOpen == open {
		return
	}
	c.modalOpen = open
	c.notifyLocked()
}

// FlushSearch applies pending search input immediately, cancelling the
// debounce timer.
func (c *Coordinator) FlushSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.applySearchLocked()
}

// Invalidate re-fetches the current key. Callers invalidate the cache
// namespace first so the fetch reaches the remote.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.startFetchLocked()
	c.notifyLocked()
}

// View returns the current snapshot.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe returns a channel that receives the latest View after every
// change. Slow readers only ever see the newest snapshot. The returned func
// unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan View, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan View, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close stops the debounce timer, cancels any fetch in flight, closes every
// subscription and waits for background work to finish. Safe to call more
// than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.cancelBase()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) armDebounceLocked() {
	c.stopTimerLocked()
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A timer that was replaced may still fire if Stop lost the race.
		if c.closed || seq != c.timerSeq {
			return
		}
		c.timer = nil
		c.applySearchLocked()
	})
}

func (c *Coordinator) stopTimerLocked() {
	c.timerSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) applySearchLocked() {
	debounced := notes.NormalizeSearch(c.search)
	if debounced == c.debounced {
		return
	}
	c.debounced = debounced
	c.refreshLocked()
	c.notifyLocked()
}

// refreshLocked starts a fetch when page or debounced search moved off the
// key currently shown.
func (c *Coordinator) refreshLocked() {
	next := queryKey{page: c.page, search: c.debounced}
	if next == c.key {
		return
	}
	c.key = next
	c.startFetchLocked()
}

func (c *Coordinator) startFetchLocked() {
	c.generation++
	gen := c.generation
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.failed = false

	key := querycache.ListKey(c.key.page, c.perPage, c.key.search)
	if res, ok := querycache.Peek[notes.PageResult](c.cache, key); ok {
		c.result = &res
		c.fetching = false
		return
	}

	params := notes.ListParams{Page: c.key.page, PerPage: c.perPage, Search: c.key.search}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelFetch = cancel
	c.fetching = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		res, _, err := querycache.Fetch(ctx, c.cache, key, func(fctx context.Context) (notes.PageResult, error) {
			return c.svc.List(fctx, params)
		})
		c.commit(gen, params, res, err)
	}()
}

func (c *Coordinator) commit(gen uint64, params notes.ListParams, res notes.PageResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if gen != c.generation {
		if c.recorder != nil {
			c.recorder.StaleDiscarded()
		}
		c.log.Debug("list_result_discarded", "page", params.Page, "search", params.Search, "generation", gen, "current", c.generation)
		return
	}
	c.cancelFetch = nil
	c.fetching = false
	if err != nil {
		c.failed = true
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("list_fetch_failed", "page", params.Page, "search", params.Search, "error", err)
		}
	} else {
		if res.Notes == nil {
			res.Notes = []notes.Note{}
		}
		c.failed = false
		c.result = &res
	}
	c.notifyLocked()
}

func (c *Coordinator) viewLocked() View {
	v := View{
		Page:            c.page,
		Search:          c.search,
		DebouncedSearch: c.debounced,
		ModalOpen:       c.modalOpen,
		Fetching:        c.fetching,
	}
	if c.result != nil {
		v.Notes = append([]notes.Note(nil), c.result.Notes...)
		v.TotalPages = c.result.TotalPages
	}
	switch {
	case c.failed:
		v.Status = StatusError
		v.ErrorMessage = ErrorMessage
	case c.result == nil, c.fetching && len(v.Notes) == 0:
		// An empty previous page is not shown as a result while the next
		// key loads.
		v.Status = StatusLoading
	case len(v.Notes) == 0:
		v.Status = StatusEmpty
	default:
		v.Status = StatusList
	}
	v.ShowPagination = v.TotalPages > 1
	return v
}

func (c *Coordinator) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	v := c.viewLocked()
	for _, ch := range c.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}
