// Package noteform holds the create-note form state for one browser session
// and drives a submission from validation through to cache invalidation.
package noteform

import (
	"context"
	"errors"
	"sync"

	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
)

// FailureMessage is shown above the form when the remote rejects a create.
const FailureMessage = "Could not create note. Please try again."

// ErrInFlight is returned when Submit is called while a submission is still
// pending.
var ErrInFlight = errors.New("noteform: submission already in flight")

// Form is a snapshot of the form state.
type Form struct {
	Values     notes.CreateParams
	Errors     notes.ValidationResult
	Submitting bool
	Message    string
}

// Defaults returns the blank form values.
func Defaults() notes.CreateParams {
	return notes.CreateParams{Tag: notes.DefaultTag}
}

// Result classifies how a submission ended.
type Result int

const (
	Created Result = iota
	Invalid
	Failed
	Busy
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case Invalid:
		return "invalid"
	case Failed:
		return "failed"
	default:
		return "busy"
	}
}

// Outcome describes one Submit call. Note is set when Result is Created; Err
// is set for Failed and Busy.
type Outcome struct {
	Result Result
	Note   notes.Note
	Err    error
}

// CreateRecorder counts notes created. *metrics.Manager implements it.
type CreateRecorder interface {
	NoteCreated()
}

// Deps wires a Controller. OnSuccess runs after the cache is invalidated; the
// web layer uses it to close the modal and refresh the list.
type Deps struct {
	Service   notehub.Service
	Cache     *querycache.Cache
	OnSuccess func(notes.Note)
	Recorder  CreateRecorder
}

// Controller is safe for concurrent use. At most one submission runs at a
// time.
type Controller struct {
	deps Deps

	mu   sync.Mutex
	form Form
}

// New returns a controller holding a blank form.
func New(deps Deps) *Controller {
	return &Controller{deps: deps, form: Form{Values: Defaults()}}
}

// Snapshot returns the current form state.
func (c *Controller) Snapshot() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.form
	f.Errors.Errors = append([]notes.FieldError(nil), c.form.Errors.Errors...)
	return f
}

// ControlsDisabled reports whether inputs and buttons should be disabled.
func (c *Controller) ControlsDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Submitting
}

// Cancel resets the form. It does nothing and returns false while a
// submission is pending.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.Submitting {
		return false
	}
	c.form = Form{Values: Defaults()}
	return true
}

// Submit validates values and, when they pass, creates the note. Invalid
// input never reaches the network. On failure the entered values are kept
// so the user can retry.
func (c *Controller) Submit(ctx context.Context, values notes.CreateParams) Outcome {
	logger := obs.From(ctx).With("pkg", "noteform")

	c.mu.Lock()
	if c.form.Submitting {
		c.mu.Unlock()
		return Outcome{Result: Busy, Err: ErrInFlight}
	}
	c.form.Values = values
	c.form.Message = ""
	if res := notes.Validate(values); !res.OK() {
		c.form.Errors = res
		c.mu.Unlock()
		logger.Debug("note_form_invalid", "fields", len(res.Errors))
		return Outcome{Result: Invalid, Err: res}
	}
	c.form.Errors = notes.ValidationResult{}
	c.form.Submitting = true
	c.mu.Unlock()

	note, err := c.deps.Service.Create(ctx, notes.Normalize(values))

	c.mu.Lock()
	if err != nil {
		c.form.Submitting = false
		c.form.Message = FailureMessage
		c.mu.Unlock()
		logger.Warn("note_create_failed", "error", err)
		return Outcome{Result: Failed, Err: err}
	}
	c.form = Form{Values: Defaults()}
	c.mu.Unlock()

	if c.deps.Cache != nil {
		c.deps.Cache.InvalidateNamespace(querycache.NamespaceNotes)
	}
	if c.deps.Recorder != nil {
		c.deps.Recorder.NoteCreated()
	}
	logger.Info("note_created", "note_id", note.ID, "tag", string(note.Tag))
	if c.deps.OnSuccess != nil {
		c.deps.OnSuccess(note)
	}
	return Outcome{Result: Created, Note: note}
}
