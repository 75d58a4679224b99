package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kuitang/notehub-client/internal/clock"
	"github.com/kuitang/notehub-client/internal/listview"
	"github.com/kuitang/notehub-client/internal/noteform"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/querycache"
)

type emptyService struct{}

func (emptyService) List(context.Context, notes.ListParams) (notes.PageResult, error) {
	return notes.PageResult{Notes: []notes.Note{}, TotalPages: 1}, nil
}

func (emptyService) Get(context.Context, string) (notes.Note, error) { return notes.Note{}, nil }

func (emptyService) Create(_ context.Context, p notes.CreateParams) (notes.Note, error) {
	return notes.Note{ID: "n", Title: p.Title, Tag: p.Tag}, nil
}

func (emptyService) Delete(context.Context, string) (notes.Note, error) { return notes.Note{}, nil }

type sessionCounter struct{ live int }

func (c *sessionCounter) SessionsChanged(delta int) { c.live += delta }

func newTestSessions(t *testing.T, clk clock.Clock, rec SessionRecorder) *Sessions {
	t.Helper()
	cache := querycache.New(querycache.Options{})
	s := NewSessions(SessionsConfig{
		Factory: NewListSessionFactory(
			func(id string) listview.Deps {
				return listview.Deps{Service: emptyService{}, Cache: cache, Clock: clk, SessionID: id}
			},
			func(string) noteform.Deps { return noteform.Deps{Service: emptyService{}, Cache: cache} },
		),
		Clock:       clk,
		IdleTimeout: 10 * time.Minute,
		Recorder:    rec,
	})
	t.Cleanup(s.Close)
	return s
}

func TestSessions_CookieRoundTrip(t *testing.T) {
	s := newTestSessions(t, clock.NewFake(time.Unix(0, 0)), nil)

	rec := httptest.NewRecorder()
	first := s.Get(rec, httptest.NewRequest(http.MethodGet, "/notes", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != first.ID {
		t.Fatalf("cookies = %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie readable by scripts")
	}
	if cookies[0].Secure {
		t.Fatal("plain HTTP request got a Secure cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	if again := s.Get(rec, req); again != first {
		t.Fatal("cookie did not resolve to the same session")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("existing session re-issued its cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
	if other := s.Get(httptest.NewRecorder(), req); other == first || other.ID == "forged" {
		t.Fatal("unknown cookie value was trusted")
	}
}

func TestSessions_SecureCookieBehindTLSProxy(t *testing.T) {
	s := newTestSessions(t, clock.NewFake(time.Unix(0, 0)), nil)

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	s.Get(rec, req)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Fatalf("expected a Secure cookie, got %+v", cookies)
	}
}

func TestSessions_IdleEviction(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &sessionCounter{}
	s := newTestSessions(t, clk, rec)

	idle := s.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	streaming := s.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	end := s.StreamStarted(streaming)
	if rec.live != 2 {
		t.Fatalf("live = %d", rec.live)
	}

	clk.Advance(16 * time.Minute)
	if _, ok := s.Lookup(idle.ID); ok {
		t.Fatal("idle session survived")
	}
	if _, ok := s.Lookup(streaming.ID); !ok {
		t.Fatal("session with an open stream was evicted")
	}
	if rec.live != 1 {
		t.Fatalf("live = %d, want 1", rec.live)
	}
	// Evicted coordinators are closed.
	if _, ok := <-mustSubscribe(idle); ok {
		t.Fatal("evicted coordinator still open")
	}

	end()
	clk.Advance(15 * time.Minute)
	if s.Len() != 0 {
		t.Fatalf("Len = %d after stream ended", s.Len())
	}
}

func mustSubscribe(sess *Session) <-chan listview.View {
	ch, _ := sess.List.Subscribe()
	return ch
}

func TestSessions_CreateClosesModalAndRefreshes(t *testing.T) {
	s := newTestSessions(t, clock.NewFake(time.Unix(0, 0)), nil)
	sess := s.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	sess.List.OpenModal()
	out := sess.Form.Submit(context.Background(), notes.CreateParams{Title: "Hello", Tag: notes.TagTodo})
	if out.Result != noteform.Created {
		t.Fatalf("outcome = %+v", out)
	}
	if sess.List.View().ModalOpen {
		t.Fatal("modal still open after create")
	}
}

func TestSessions_CloseEndsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	rec := &sessionCounter{}
	s := newTestSessions(t, clock.NewFake(time.Unix(0, 0)), rec)
	s.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.Close()
	s.Close()
	if s.Len() != 0 || rec.live != 0 {
		t.Fatalf("Len = %d live = %d", s.Len(), rec.live)
	}
}
