package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"pgregory.net/rapid"

	"github.com/kuitang/notehub-client/internal/notes"
)

func testTruncate_RuneBound(t *rapid.T) {
	s := rapid.String().Draw(t, "s")
	n := rapid.IntRange(0, 80).Draw(t, "n")
	got := truncate(s, n)
	if utf8.RuneCountInString(got) > n {
		t.Fatalf("truncate(%q, %d) = %q exceeds bound", s, n, got)
	}
	if utf8.RuneCountInString(s) <= n && got != s {
		t.Fatalf("short string changed: %q -> %q", s, got)
	}
}

func TestTruncate_RuneBound(t *testing.T) {
	rapid.Check(t, testTruncate_RuneBound)
}

func FuzzTruncate_RuneBound(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testTruncate_RuneBound))
}

func TestFuncMap(t *testing.T) {
	if got := tagClass(notes.TagShopping); got != "tag-shopping" {
		t.Fatalf("tagClass = %q", got)
	}
	if formatTime(time.Time{}) != "" {
		t.Fatal("zero time formatted")
	}
	if got := formatTime(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)); got != "Mar 4, 2025" {
		t.Fatalf("formatTime = %q", got)
	}
	if add(2, 3) != 5 || sub(2, 3) != -1 {
		t.Fatal("arithmetic helpers broken")
	}
}

func TestRenderer_EmbeddedTemplates(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	for _, name := range []string{"notes/list.html", "notes/view.html", "error.html"} {
		if _, err := r.lookup(name); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	rec := httptest.NewRecorder()
	r.RenderError(rec, http.StatusNotFound, "Note not found")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Note not found") {
		t.Fatalf("RenderError: %d %s", rec.Code, rec.Body.String())
	}

	if err := r.Render(httptest.NewRecorder(), http.StatusOK, "missing.html", nil); err == nil {
		t.Fatal("rendering an unknown template succeeded")
	}
}

func writeTemplates(t *testing.T, dir, marker string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"base.html":       `{{define "base"}}<html>{{block "content" .}}{{end}}</html>{{end}}`,
		"error.html":      `{{define "content"}}{{.Error}}{{end}}`,
		"notes/view.html": `{{define "content"}}` + marker + `{{end}}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func renderView(t *testing.T, r *Renderer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := r.Render(rec, http.StatusOK, "notes/view.html", nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return rec.Body.String()
}

func TestRenderer_DirectoryReload(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "first")
	r, err := NewRenderer(dir)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if got := renderView(t, r); got != "<html>first</html>" {
		t.Fatalf("got %q", got)
	}

	writeTemplates(t, dir, "second")
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := renderView(t, r); got != "<html>second</html>" {
		t.Fatalf("got %q after reload", got)
	}

	// A broken template keeps the previous set.
	if err := os.WriteFile(filepath.Join(dir, "notes", "view.html"), []byte(`{{define "content"}}{{.Broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("Reload accepted a broken template")
	}
	if got := renderView(t, r); got != "<html>second</html>" {
		t.Fatalf("got %q after failed reload", got)
	}
}

func TestRenderer_WatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, "before")
	r, err := NewRenderer(dir)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeTemplates(t, dir, "after")
	deadline := time.Now().Add(5 * time.Second)
	for renderView(t, r) != "<html>after</html>" {
		if time.Now().After(deadline) {
			t.Fatal("templates never reloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewRenderer_MissingDirectory(t *testing.T) {
	if _, err := NewRenderer(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("NewRenderer accepted a missing directory")
	}
}
