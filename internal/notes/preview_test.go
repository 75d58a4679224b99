package notes

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

// multilineContentGenerator generates content with a controllable number of lines.
// Each line has at least 1 character to avoid producing empty strings.
func multilineContentGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		numLines := rapid.IntRange(1, 20).Draw(t, "numLines")
		lines := make([]string, numLines)
		for i := 0; i < numLines; i++ {
			lines[i] = rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,80}`).Draw(t, "line")
		}
		return strings.Join(lines, "\n")
	})
}

func testContentPreview_NoTruncation_Properties(t *rapid.T) {
	content := multilineContentGenerator().Draw(t, "content")
	lineCount := CountLines(content)
	maxLines := rapid.IntRange(lineCount, lineCount+10).Draw(t, "maxLines")

	if result := ContentPreview(content, maxLines); result != content {
		t.Fatalf("unexpected truncation: lines=%d maxLines=%d\nInput:  %q\nOutput: %q", lineCount, maxLines, content, result)
	}
}

func TestContentPreview_NoTruncation_Properties(t *testing.T) {
	rapid.Check(t, testContentPreview_NoTruncation_Properties)
}

func FuzzContentPreview_NoTruncation_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testContentPreview_NoTruncation_Properties))
}

func testContentPreview_Truncation_Properties(t *rapid.T) {
	numLines := rapid.IntRange(2, 20).Draw(t, "numLines")
	lines := make([]string, numLines)
	for i := 0; i < numLines; i++ {
		lines[i] = rapid.StringMatching(`[A-Za-z0-9 ]{1,40}`).Draw(t, "line")
	}
	content := strings.Join(lines, "\n")
	maxLines := rapid.IntRange(1, numLines-1).Draw(t, "maxLines")

	resultLines := strings.Split(ContentPreview(content, maxLines), "\n")
	if len(resultLines) != maxLines+1 {
		t.Fatalf("expected %d lines, got %d", maxLines+1, len(resultLines))
	}
	if resultLines[len(resultLines)-1] != "..." {
		t.Fatalf("expected trailing \"...\", got %q", resultLines[len(resultLines)-1])
	}
}

func TestContentPreview_Truncation_Properties(t *testing.T) {
	rapid.Check(t, testContentPreview_Truncation_Properties)
}

func FuzzContentPreview_Truncation_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testContentPreview_Truncation_Properties))
}

func testCountLines_NewlineCount_Properties(t *rapid.T) {
	content := multilineContentGenerator().Draw(t, "content")
	if got, want := CountLines(content), strings.Count(content, "\n")+1; got != want {
		t.Fatalf("CountLines = %d, want %d", got, want)
	}
}

func TestCountLines_NewlineCount_Properties(t *testing.T) {
	rapid.Check(t, testCountLines_NewlineCount_Properties)
	if CountLines("") != 0 {
		t.Fatal("empty content should have 0 lines")
	}
}

func testCardPreview_RuneBound_Properties(t *rapid.T) {
	content := rapid.StringN(0, 600, -1).Draw(t, "content")
	maxRunes := rapid.IntRange(1, 200).Draw(t, "maxRunes")

	got := CardPreview(content, 100, maxRunes)
	if n := utf8.RuneCountInString(got); n > maxRunes+3 {
		t.Fatalf("preview has %d runes, bound %d+3", n, maxRunes)
	}
	if !utf8.ValidString(content) {
		return
	}
	if !utf8.ValidString(got) {
		t.Fatalf("preview split a rune: %q", got)
	}
}

func TestCardPreview_RuneBound_Properties(t *testing.T) {
	rapid.Check(t, testCardPreview_RuneBound_Properties)
}

func FuzzCardPreview_RuneBound_Properties(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testCardPreview_RuneBound_Properties))
}
