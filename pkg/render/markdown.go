package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders md for a terminal of the given width. Zero disables
// word wrapping. Falls back to the raw input if rendering fails.
func Markdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	// Glamour adds trailing newlines; trim for inline use
	return strings.TrimRight(out, "\n")
}
