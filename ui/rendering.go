package ui

import (
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"
)

const minRenderWidth = 20

// renderMarkdown formats a reply for the terminal. Personas mark actions with
// **bold** and *italics*, so these come out styled rather than as asterisks.
// Autolinking is off so the terminal handles plain URLs itself.
func renderMarkdown(content string, width int) string {
	if width < minRenderWidth {
		width = minRenderWidth
	}

	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)
	return strings.TrimRight(string(rendered), "\n")
}

// fitWidth cuts s to the terminal width, counting wide runes as two cells.
func fitWidth(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
