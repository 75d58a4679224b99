package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/notehub-client/internal/notes"
)

const notesOverviewPromptName = "notes_overview"

func (h *Handler) registerPrompts(mcpServer *mcp.Server) {
	for _, prompt := range PromptDefinitions() {
		mcpServer.AddPrompt(prompt, h.overviewPrompt)
	}
}

// PromptDefinitions returns the MCP prompt definitions.
func PromptDefinitions() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        notesOverviewPromptName,
			Title:       "NoteHub overview",
			Description: "Summarize the first page of NoteHub notes, optionally filtered by search text.",
			Arguments: []*mcp.PromptArgument{
				{Name: "search", Description: "Optional search text"},
			},
		},
	}
}

// overviewPrompt embeds the current first page so the model starts from
// real data, then points at the tools for anything further.
func (h *Handler) overviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	search := ""
	if req != nil && req.Params != nil {
		search = notes.NormalizeSearch(req.Params.Arguments["search"])
	}
	res, err := h.listPage(ctx, 1, search)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}

	var b strings.Builder
	if search != "" {
		fmt.Fprintf(&b, "Here are the NoteHub notes matching %q (page 1 of %d):\n", search, res.TotalPages)
	} else {
		fmt.Fprintf(&b, "Here are my most recent NoteHub notes (page 1 of %d):\n", res.TotalPages)
	}
	if len(res.Notes) == 0 {
		b.WriteString("(no notes)\n")
	}
	for _, n := range res.Notes {
		fmt.Fprintf(&b, "- [%s] %s (id %s)\n", n.Tag, n.Title, n.ID)
	}
	b.WriteString("\nGive me a short overview grouped by tag. Use note_view to read a note in full and note_list with page for more.")

	return &mcp.GetPromptResult{
		Description: "Overview of NoteHub notes",
		Messages: []*mcp.PromptMessage{
			{
				Role:    mcp.Role("user"),
				Content: &mcp.TextContent{Text: b.String()},
			},
		},
	}, nil
}
