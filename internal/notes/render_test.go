package notes

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testRenderMarkdown_HeadingsRender(t *rapid.T) {
	level := rapid.IntRange(1, 6).Draw(t, "level")
	text := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,40}[A-Za-z0-9]`).Draw(t, "text")

	out := string(RenderMarkdown(strings.Repeat("#", level) + " " + text))
	tag := "<h" + string(rune('0'+level))
	if !strings.Contains(out, tag) {
		t.Fatalf("expected %s in %q", tag, out)
	}
}

func TestRenderMarkdown_HeadingsRender(t *testing.T) {
	rapid.Check(t, testRenderMarkdown_HeadingsRender)
}

func FuzzRenderMarkdown_HeadingsRender(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testRenderMarkdown_HeadingsRender))
}

func TestRenderMarkdown_StripsScripts(t *testing.T) {
	out := string(RenderMarkdown("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>"))
	if strings.Contains(out, "<script") || strings.Contains(out, "javascript:") {
		t.Fatalf("unsafe markup survived: %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("text lost: %q", out)
	}
}

func TestRenderMarkdown_ExternalLinksOpenInNewTab(t *testing.T) {
	out := string(RenderMarkdown("[docs](https://example.com/docs)"))
	if !strings.Contains(out, `href="https://example.com/docs"`) || !strings.Contains(out, `target="_blank"`) {
		t.Fatalf("link not rendered as external: %q", out)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	if RenderMarkdown("") != "" {
		t.Fatal("empty content should render empty")
	}
}
