package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/notehub-client/internal/clock"
	"github.com/kuitang/notehub-client/internal/listview"
	"github.com/kuitang/notehub-client/internal/noteform"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/urlutil"
)

// SessionCookieName identifies a browser's session.
const SessionCookieName = "notehub_session"

// DefaultSessionIdleTimeout evicts sessions nobody has touched for this long.
const DefaultSessionIdleTimeout = 30 * time.Minute

// Session is the per-browser UI state: list coordinator plus create form.
type Session struct {
	ID   string
	List *listview.Coordinator
	Form *noteform.Controller

	lastSeen time.Time
	streams  int
}

// SessionFactory builds the coordinator and form for a new session id.
type SessionFactory func(id string) (*listview.Coordinator, *noteform.Controller)

// SessionRecorder tracks the live session count. *metrics.Manager
// implements it.
type SessionRecorder interface {
	SessionsChanged(delta int)
}

// SessionsConfig configures a Sessions registry.
type SessionsConfig struct {
	Factory     SessionFactory
	Clock       clock.Clock
	IdleTimeout time.Duration
	Recorder    SessionRecorder
	Secure      bool // always mark the cookie Secure, not only on HTTPS requests
}

// Sessions is a cookie-keyed registry of Session values with idle eviction.
type Sessions struct {
	cfg SessionsConfig

	mu     sync.Mutex
	byID   map[string]*Session
	sweep  clock.Timer
	closed bool
}

// NewSessions creates the registry and schedules periodic idle sweeps.
func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	}
	s := &Sessions{cfg: cfg, byID: make(map[string]*Session)}
	s.mu.Lock()
	s.scheduleSweepLocked()
	s.mu.Unlock()
	return s
}

// NewListSessionFactory wires a coordinator and form so that a successful
// create closes the modal and refreshes the visible list.
func NewListSessionFactory(list func(id string) listview.Deps, form func(id string) noteform.Deps) SessionFactory {
	return func(id string) (*listview.Coordinator, *noteform.Controller) {
		coord := listview.New(list(id))
		deps := form(id)
		next := deps.OnSuccess
		deps.OnSuccess = func(n notes.Note) {
			coord.CloseModal()
			coord.Invalidate()
			if next != nil {
				next(n)
			}
		}
		return coord, noteform.New(deps)
	}
}

// Get returns the caller's session, creating one (and setting the cookie)
// when the request has none or an unknown id.
func (s *Sessions) Get(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		if sess, ok := s.touch(c.Value); ok {
			return sess
		}
	}
	sess := s.create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Secure || urlutil.IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Lookup returns an existing session without creating one.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	return s.touch(id)
}

func (s *Sessions) touch(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if ok {
		sess.lastSeen = s.cfg.Clock.Now()
	}
	return sess, ok
}

func (s *Sessions) create() *Session {
	id := uuid.NewString()
	list, form := s.cfg.Factory(id)
	sess := &Session{ID: id, List: list, Form: form}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		list.Close()
		return sess
	}
	sess.lastSeen = s.cfg.Clock.Now()
	s.byID[id] = sess
	s.mu.Unlock()

	if s.cfg.Recorder != nil {
		s.cfg.Recorder.SessionsChanged(1)
	}
	obs.Pkg("web").Debug("session_created", "session_id", id)
	return sess
}

// StreamStarted marks a live event stream; sessions with streams are never
// evicted. The returned func ends the stream.
func (s *Sessions) StreamStarted(sess *Session) func() {
	s.mu.Lock()
	sess.streams++
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			sess.streams--
			sess.lastSeen = s.cfg.Clock.Now()
			s.mu.Unlock()
		})
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Sweep closes and removes sessions idle longer than the timeout. It
// returns how many were evicted.
func (s *Sessions) Sweep() int {
	now := s.cfg.Clock.Now()
	var evicted []*Session
	s.mu.Lock()
	for id, sess := range s.byID {
		if sess.streams == 0 && now.Sub(sess.lastSeen) > s.cfg.IdleTimeout {
			delete(s.byID, id)
			evicted = append(evicted, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.List.Close()
	}
	if n := len(evicted); n > 0 {
		if s.cfg.Recorder != nil {
			s.cfg.Recorder.SessionsChanged(-n)
		}
		obs.Pkg("web").Info("sessions_evicted", "count", n)
	}
	return len(evicted)
}

func (s *Sessions) scheduleSweepLocked() {
	s.sweep = s.cfg.Clock.AfterFunc(s.cfg.IdleTimeout/2, func() {
		s.Sweep()
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.closed {
			s.scheduleSweepLocked()
		}
	})
}

// Close stops sweeping and closes every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.sweep != nil {
		s.sweep.Stop()
	}
	all := make([]*Session, 0, len(s.byID))
	for id, sess := range s.byID {
		delete(s.byID, id)
		all = append(all, sess)
	}
	s.mu.Unlock()

	for _, sess := range all {
		sess.List.Close()
	}
	if s.cfg.Recorder != nil && len(all) > 0 {
		s.cfg.Recorder.SessionsChanged(-len(all))
	}
}
