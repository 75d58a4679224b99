package notes

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func tagGenerator() *rapid.Generator[Tag] {
	return rapid.SampledFrom(AllTags)
}

func validParamsGenerator() *rapid.Generator[CreateParams] {
	return rapid.Custom(func(t *rapid.T) CreateParams {
		return CreateParams{
			Title:   rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ]{1,47}[A-Za-z0-9]`).Draw(t, "title"),
			Content: rapid.StringMatching(`[A-Za-z0-9 .,\n]{0,500}`).Draw(t, "content"),
			Tag:     tagGenerator().Draw(t, "tag"),
		}
	})
}

func testValidate_AcceptsWithinBounds(t *rapid.T) {
	p := validParamsGenerator().Draw(t, "params")
	if res := Validate(p); !res.OK() {
		t.Fatalf("Validate(%+v) = %v", p, res.Errors)
	}
}

func TestValidate_AcceptsWithinBounds(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_AcceptsWithinBounds)
}

func FuzzValidate_AcceptsWithinBounds(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testValidate_AcceptsWithinBounds))
}

// Titles outside 3..50 runes are always rejected on the title field.
func testValidate_RejectsTitleLength(t *rapid.T) {
	title := rapid.OneOf(
		rapid.StringMatching(`[a-zé]{1,2}`),
		rapid.StringMatching(`[a-zé]{51,120}`),
	).Draw(t, "title")
	res := Validate(CreateParams{Title: title, Tag: TagWork})
	if res.OK() {
		t.Fatalf("title of %d runes accepted", utf8.RuneCountInString(title))
	}
	if res.For(FieldTitle) == "" {
		t.Fatalf("no title error in %v", res.Errors)
	}
	if res.For(FieldContent) != "" || res.For(FieldTag) != "" {
		t.Fatalf("unexpected errors on other fields: %v", res.Errors)
	}
}

func TestValidate_RejectsTitleLength(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsTitleLength)
}

func FuzzValidate_RejectsTitleLength(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testValidate_RejectsTitleLength))
}

func TestValidate_Messages(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    CreateParams
		field string
		msg   string
	}{
		{"empty title", CreateParams{Title: "   ", Tag: TagTodo}, FieldTitle, "Required"},
		{"short title", CreateParams{Title: "ab", Tag: TagTodo}, FieldTitle, "Title must be at least 3 characters"},
		{"long title", CreateParams{Title: strings.Repeat("x", 51), Tag: TagTodo}, FieldTitle, "Title must be at most 50 characters"},
		{"long content", CreateParams{Title: "Valid", Content: strings.Repeat("y", 501), Tag: TagTodo}, FieldContent, "Max 500 characters"},
		{"bad tag", CreateParams{Title: "Valid", Tag: "Urgent"}, FieldTag, "Choose a valid tag"},
		{"missing tag", CreateParams{Title: "Valid"}, FieldTag, "Required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.in)
			if got := res.For(tc.field); got != tc.msg {
				t.Fatalf("For(%q) = %q, want %q (all: %v)", tc.field, got, tc.msg, res.Errors)
			}
		})
	}
}

func TestValidate_TrimsBeforeMeasuring(t *testing.T) {
	t.Parallel()
	res := Validate(CreateParams{Title: "   Buy milk   ", Content: strings.Repeat(" ", 40) + strings.Repeat("c", 500), Tag: TagShopping})
	if !res.OK() {
		t.Fatalf("padded values should pass after trim: %v", res.Errors)
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	t.Parallel()
	res := Validate(CreateParams{Title: "", Content: strings.Repeat("z", 600), Tag: "nope"})
	m := res.Map()
	if len(m) != 3 {
		t.Fatalf("expected 3 field errors, got %v", res.Errors)
	}
	if res.Errors[0].Field != FieldTitle || res.Errors[2].Field != FieldTag {
		t.Fatalf("errors not in form order: %v", res.Errors)
	}
}

func TestNormalizeAndListParams(t *testing.T) {
	t.Parallel()
	p := Normalize(CreateParams{Title: "  t  ", Content: "\n c \n", Tag: TagWork})
	if p.Title != "t" || p.Content != "c" {
		t.Fatalf("Normalize = %+v", p)
	}
	lp := ListParams{Page: -3, Search: "  milk "}.Normalized()
	if lp.Page != 1 || lp.PerPage != DefaultPerPage || lp.Search != "milk" {
		t.Fatalf("Normalized = %+v", lp)
	}
	if tag, ok := ParseTag("Meeting"); !ok || tag != TagMeeting {
		t.Fatalf("ParseTag(Meeting) = %q, %v", tag, ok)
	}
	if _, ok := ParseTag("meeting"); ok {
		t.Fatal("ParseTag should be case-sensitive")
	}
}
