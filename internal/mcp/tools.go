package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

const (
	toolNoteList   = "note_list"
	toolNoteView   = "note_view"
	toolNoteCreate = "note_create"
	toolNoteDelete = "note_delete"
)

// ToolDefinitions returns the NoteHub tool definitions.
func ToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        toolNoteList,
			Description: "List NoteHub notes, newest first, 12 per page. Each entry has id, title, tag, a two-line preview and total line count. Pass search to filter by text in title or content (matched by NoteHub). The response includes total_pages; request further pages with page. Use note_view to read a full note.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"page": map[string]any{
						"type":        "integer",
						"description": "1-based page number (default 1)",
					},
					"search": map[string]any{
						"type":        "string",
						"description": "Optional search text; surrounding whitespace is ignored",
					},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        toolNoteView,
			Description: "Read one NoteHub note in full: title, content, tag, total line count and timestamps.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The note id from note_list",
					},
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
		},
		{
			Name:        toolNoteCreate,
			Description: "Create a NoteHub note. Title is required (3 to 50 characters), content is optional (at most 500 characters) and tag is one of Todo, Work, Personal, Meeting, Shopping (default Todo). Title and content are trimmed. Invalid input is rejected with per-field messages and nothing is sent. Returns the new id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Note title, 3 to 50 characters",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Note body, at most 500 characters",
					},
					"tag": map[string]any{
						"type":        "string",
						"description": "One of Todo, Work, Personal, Meeting, Shopping (default Todo)",
					},
				},
				"required":             []string{"title"},
				"additionalProperties": false,
			},
		},
		{
			Name:        toolNoteDelete,
			Description: "Delete a NoteHub note by id. This cannot be undone. Returns the deleted note's id and title.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The note id to delete",
					},
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
		},
	}
}
