package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/notehub-client/internal/errs"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/notes"
	"github.com/kuitang/notehub-client/internal/obs"
	"github.com/kuitang/notehub-client/internal/querycache"
)

const previewLines = 2

// Recorder receives mutation events. *metrics.Manager implements it.
type Recorder interface {
	NoteCreated()
	NoteDeleted()
}

// Handler implements MCP tool call handling.
type Handler struct {
	svc      notehub.Service
	cache    *querycache.Cache
	perPage  int
	recorder Recorder
}

// NewHandler creates a handler. cache and recorder may be nil.
func NewHandler(svc notehub.Service, cache *querycache.Cache, perPage int, recorder Recorder) *Handler {
	if perPage <= 0 {
		perPage = notes.DefaultPerPage
	}
	return &Handler{svc: svc, cache: cache, perPage: perPage, recorder: recorder}
}

func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := h.HandleToolCall(ctx, name, args)
		return result, nil, err
	}
}

// HandleToolCall routes tool calls to appropriate handlers. Tool failures are
// reported in the result, never as a protocol error.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	start := time.Now()
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case toolNoteList:
		result, err = h.handleNoteList(ctx, arguments)
	case toolNoteView:
		result, err = h.handleNoteView(ctx, arguments)
	case toolNoteCreate:
		result, err = h.handleNoteCreate(ctx, arguments)
	case toolNoteDelete:
		result, err = h.handleNoteDelete(ctx, arguments)
	default:
		err = errs.Newf(errs.InvalidArgument, "unknown tool: %s", name)
	}

	logger := obs.From(ctx).With("pkg", "mcp", "tool", name, "dur_ms", float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		logger.Warn("mcp_tool_failed", "code", string(errs.CodeOf(err)), "error", err)
		return newToolResultError(err), nil
	}
	logger.Info("mcp_tool_ok")
	return result, nil
}

// toolErrorPayload is the JSON body of a failed tool result.
type toolErrorPayload struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []notes.FieldError `json:"fields,omitempty"`
}

func newToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func newToolResultError(err error) *mcp.CallToolResult {
	payload := toolErrorPayload{
		Code:    string(errs.CodeOf(err)),
		Message: errs.MessageOf(err),
	}
	var vr notes.ValidationResult
	if errors.As(err, &vr) {
		payload.Code = string(errs.InvalidArgument)
		payload.Message = "note is invalid"
		payload.Fields = vr.Errors
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: marshalToolJSON(payload)},
		},
		IsError: true,
	}
}

func marshalToolJSON(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"code":"internal","message":"failed to marshal response","detail":%q}`, err.Error())
	}
	return string(data)
}

// decodeToolArgs decodes tool arguments strictly; unknown fields are an
// InvalidArgument error.
func decodeToolArgs(args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "arguments are not valid JSON", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid arguments: "+err.Error(), err)
	}
	return nil
}

type noteSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Tag        notes.Tag `json:"tag"`
	Preview    string    `json:"preview"`
	TotalLines int       `json:"total_lines"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type noteListResult struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Search     string        `json:"search,omitempty"`
	Notes      []noteSummary `json:"notes"`
}

type noteViewResult struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tag        notes.Tag `json:"tag"`
	TotalLines int       `json:"total_lines"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type noteMutationResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tag       notes.Tag `json:"tag"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
}

func (h *Handler) listPage(ctx context.Context, page int, search string) (notes.PageResult, error) {
	p := notes.ListParams{Page: page, PerPage: h.perPage, Search: search}.Normalized()
	if h.cache == nil {
		return h.svc.List(ctx, p)
	}
	res, _, err := querycache.Fetch(ctx, h.cache, querycache.ListKey(p.Page, p.PerPage, p.Search), func(fctx context.Context) (notes.PageResult, error) {
		return h.svc.List(fctx, p)
	})
	return res, err
}

func (h *Handler) handleNoteList(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		Page   int    `json:"page,omitempty"`
		Search string `json:"search,omitempty"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	page := notes.SanitizePage(in.Page)
	search := notes.NormalizeSearch(in.Search)

	res, err := h.listPage(ctx, page, search)
	if err != nil {
		return nil, err
	}
	out := noteListResult{Page: page, TotalPages: res.TotalPages, Search: search, Notes: make([]noteSummary, 0, len(res.Notes))}
	for _, n := range res.Notes {
		out.Notes = append(out.Notes, noteSummary{
			ID:         n.ID,
			Title:      n.Title,
			Tag:        n.Tag,
			Preview:    notes.ContentPreview(n.Content, previewLines),
			TotalLines: notes.CountLines(n.Content),
			UpdatedAt:  n.UpdatedAt,
		})
	}
	return newToolResultText(marshalToolJSON(out)), nil
}

func (h *Handler) handleNoteView(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ID) == "" {
		return nil, errs.New(errs.InvalidArgument, "id is required")
	}
	n, err := h.svc.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return newToolResultText(marshalToolJSON(noteViewResult{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		Tag:        n.Tag,
		TotalLines: notes.CountLines(n.Content),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	})), nil
}

func (h *Handler) handleNoteCreate(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content,omitempty"`
		Tag     string `json:"tag,omitempty"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	tag := notes.Tag(in.Tag)
	if tag == "" {
		tag = notes.DefaultTag
	}
	params := notes.CreateParams{Title: in.Title, Content: in.Content, Tag: tag}
	if res := notes.Validate(params); !res.OK() {
		return nil, res
	}

	n, err := h.svc.Create(ctx, notes.Normalize(params))
	if err != nil {
		return nil, err
	}
	h.invalidate()
	if h.recorder != nil {
		h.recorder.NoteCreated()
	}
	return newToolResultText(marshalToolJSON(noteMutationResult{ID: n.ID, Title: n.Title, Tag: n.Tag, CreatedAt: n.CreatedAt})), nil
}

func (h *Handler) handleNoteDelete(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ID) == "" {
		return nil, errs.New(errs.InvalidArgument, "id is required")
	}
	n, err := h.svc.Delete(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	h.invalidate()
	if h.recorder != nil {
		h.recorder.NoteDeleted()
	}
	return newToolResultText(marshalToolJSON(noteMutationResult{ID: n.ID, Title: n.Title, Tag: n.Tag, Deleted: true})), nil
}

func (h *Handler) invalidate() {
	if h.cache != nil {
		h.cache.InvalidateNamespace(querycache.NamespaceNotes)
	}
}
