// Package web serves the server-rendered NoteHub UI.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
)

//go:embed templates
var embeddedTemplates embed.FS

// Renderer manages HTML template rendering with caching and custom functions.
type Renderer struct {
	dir     string // "" means the embedded templates
	funcMap template.FuncMap

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRenderer parses every page template under templatesDir against
// base.html. An empty templatesDir uses the templates compiled into the
// binary.
func NewRenderer(templatesDir string) (*Renderer, error) {
	r := &Renderer{dir: templatesDir, funcMap: createFuncMap()}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses all templates. On error the previous set stays active.
func (r *Renderer) Reload() error {
	var (
		fsys fs.FS
		err  error
	)
	if r.dir == "" {
		fsys, err = fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return fmt.Errorf("failed to open embedded templates: %w", err)
		}
	} else {
		// os.Root keeps template reads inside the configured directory.
		root, err := os.OpenRoot(r.dir)
		if err != nil {
			return fmt.Errorf("failed to open templates directory: %w", err)
		}
		defer root.Close()
		fsys = root.FS()
	}

	parsed, err := parseTemplates(fsys, r.funcMap)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	r.mu.Lock()
	r.templates = parsed
	r.mu.Unlock()
	return nil
}

func parseTemplates(fsys fs.FS, funcMap template.FuncMap) (map[string]*template.Template, error) {
	base, err := fs.ReadFile(fsys, "base.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}

	out := make(map[string]*template.Template)
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == "base.html" || path.Ext(p) != ".html" {
			return nil
		}
		page, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", p, err)
		}
		tmpl, err := template.New("base").Funcs(funcMap).Parse(string(base))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", p, err)
		}
		if tmpl, err = tmpl.Parse(string(page)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", p, err)
		}
		out[p] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return out, nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render writes the full page templateName (relative path, e.g.
// "notes/list.html") with status.
func (r *Renderer) Render(w http.ResponseWriter, status int, templateName string, data any) error {
	return r.execute(w, status, templateName, "base", data)
}

// RenderPartial writes only the named block of templateName, for fragment
// endpoints.
func (r *Renderer) RenderPartial(w http.ResponseWriter, status int, templateName, block string, data any) error {
	return r.execute(w, status, templateName, block, data)
}

// RenderPartialString renders a block into a string, for SSE payloads.
func (r *Renderer) RenderPartialString(templateName, block string, data any) (string, error) {
	tmpl, err := r.lookup(templateName)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, block, data); err != nil {
		return "", fmt.Errorf("failed to execute %s in %q: %w", block, templateName, err)
	}
	return buf.String(), nil
}

// execute buffers output so a template failure can still become a clean 500.
func (r *Renderer) execute(w http.ResponseWriter, status int, templateName, block string, data any) error {
	tmpl, err := r.lookup(templateName)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, block, data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// RenderError renders the error page, falling back to plain text.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	data := ErrorPageData{
		PageData:  PageData{Title: http.StatusText(code)},
		Error:     message,
		ErrorCode: http.StatusText(code),
	}
	if err := r.Render(w, code, "error.html", data); err == nil {
		return
	}
	http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
}

// Watch reloads templates whenever a file under the templates directory
// changes, until ctx ends. It is a no-op for embedded templates.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	logger := obs.Pkg("web")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	err = filepath.WalkDir(r.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()
		// Editors emit bursts of events per save; collapse them.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = watcher.Add(ev.Name)
					}
				}
				if strings.HasSuffix(ev.Name, ".html") {
					pending = time.After(50 * time.Millisecond)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("template_watch_error", "error", err)
			case <-pending:
				pending = nil
				if err := r.Reload(); err != nil {
					logger.Error("template_reload_failed", "error", err)
					continue
				}
				logger.Info("templates_reloaded", "dir", r.dir)
			}
		}
	}()
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"truncate":   truncate,
		"markdown":   notes.RenderMarkdown,
		"add":        add,
		"sub":        sub,
		"tagClass":   tagClass,
		"preview":    preview,
	}
}

// formatTime formats a time.Time as a human-readable date string.
// Example: "Jan 2, 2006"
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// truncate truncates a string to n runes, adding "..." if truncated.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func add(a, b int) int { return a + b }

func sub(a, b int) int { return a - b }

// tagClass maps a tag to its badge CSS class.
func tagClass(t notes.Tag) string {
	return "tag-" + strings.ToLower(string(t))
}

// preview is the card body shown in the list.
func preview(content string) string {
	return notes.CardPreview(content, 3, 160)
}
