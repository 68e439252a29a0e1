package report

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultWidth is the wrap width used when the terminal size is unknown.
const DefaultWidth = 100

// Renderer transforms markdown before it is written out.
type Renderer func(markdown string) (string, error)

// Plain returns markdown unchanged.
func Plain(markdown string) (string, error) { return markdown, nil }

// NewRenderer returns a glamour renderer styled for out. When out is not a
// terminal the markdown is passed through untouched so it can be piped.
func NewRenderer(out *os.File) (Renderer, error) {
	fd := int(out.Fd())
	if !term.IsTerminal(fd) {
		return Plain, nil
	}

	width := DefaultWidth
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}

	style := "light"
	if termenv.NewOutput(out).HasDarkBackground() {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// NewStyledRenderer renders with a fixed glamour style ("dark", "light",
// "notty", ...) regardless of the output.
func NewStyledRenderer(style string, width int) (Renderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}
