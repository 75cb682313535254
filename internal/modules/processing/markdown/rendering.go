package markdown

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is dropped: summaries come from a model and are untrusted.
var summaryEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// Render converts a model-written summary to an HTML fragment. A reply wrapped
// in a single ```markdown fence is unwrapped first. Conversion errors fall back
// to escaped text.
func Render(summary string) string {
	text := unwrapFence(strings.TrimSpace(summary))
	if text == "" {
		return ""
	}

	var out bytes.Buffer
	if err := summaryEngine.Convert([]byte(text), &out); err != nil {
		return template.HTMLEscapeString(text)
	}
	return out.String()
}

func unwrapFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	body := strings.TrimSuffix(text, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return text
	}
	switch lang := strings.TrimSpace(body[3:nl]); lang {
	case "", "md", "markdown":
	default:
		return text
	}
	inner := body[nl+1:]
	if strings.Contains(inner, "```") {
		return text
	}
	return strings.TrimSpace(inner)
}
