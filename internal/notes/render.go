package notes

import (
	"html/template"
	"sync"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// RenderMarkdown renders note content as sanitized HTML for the detail page.
// The markdown parser is not reusable, so a new one is built per call.
func RenderMarkdown(content string) template.HTML {
	if content == "" {
		return ""
	}
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	unsafe := markdown.Render(doc, renderer)
	return template.HTML(sanitizer().SanitizeBytes(unsafe))
}
