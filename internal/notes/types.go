// Package notes holds the NoteHub data model shared by the API client, the
// list view, the create form and the MCP tools.
package notes

import (
	"strings"
	"time"
)

// Tag categorizes a note. The set is fixed by NoteHub.
type Tag string

const (
	TagTodo     Tag = "Todo"
	TagWork     Tag = "Work"
	TagPersonal Tag = "Personal"
	TagMeeting  Tag = "Meeting"
	TagShopping Tag = "Shopping"

	DefaultTag = TagTodo
)

// AllTags lists every tag in display order.
var AllTags = []Tag{TagTodo, TagWork, TagPersonal, TagMeeting, TagShopping}

// ParseTag returns the tag named s (exact match) and whether it exists.
func ParseTag(s string) (Tag, bool) {
	for _, t := range AllTags {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Limits enforced before a note is sent to NoteHub.
const (
	TitleMinLen    = 3
	TitleMaxLen    = 50
	ContentMaxLen  = 500
	DefaultPerPage = 12
)

// Note is a NoteHub note. ID and timestamps are assigned by the server.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tag       Tag       `json:"tag"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListParams selects one page of notes. An empty Search lists everything.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
}

// Normalized returns p with page clamped, perPage defaulted and search trimmed.
func (p ListParams) Normalized() ListParams {
	p.Page = SanitizePage(p.Page)
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	p.Search = NormalizeSearch(p.Search)
	return p
}

// PageResult is one page as returned by NoteHub. TotalPages comes from the
// server and is never recomputed here.
type PageResult struct {
	Notes      []Note `json:"notes"`
	TotalPages int    `json:"totalPages"`
}

// CreateParams is the body of a create request.
type CreateParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Tag     Tag    `json:"tag"`
}

// Normalize trims title and content.
func Normalize(p CreateParams) CreateParams {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	return p
}

// SanitizePage clamps page numbers below 1 to 1.
func SanitizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeSearch trims search text; the empty result means "no search".
func NormalizeSearch(s string) string {
	return strings.TrimSpace(s)
}
