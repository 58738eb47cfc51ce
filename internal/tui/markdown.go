package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const defaultWidth = 80

// RenderMarkdown renders text for a terminal of the given width. On any
// renderer error the text is returned unchanged.
func RenderMarkdown(text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}
