package report

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the xplanning banner with the running version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"                 _                   _", "#818cf8"},
		{" __  ___ __ | | __ _ _ __  _ __ (_)_ __   __ _", "#a78bfa"},
		{" \\ \\/ / '_ \\| |/ _` | '_ \\| '_ \\| | '_ \\ / _` |", "#c084fc"},
		{"  >  <| |_) | | (_| | | | | | | | | | | | (_| |", "#e879f9"},
		{" /_/\\_\\ .__/|_|\\__,_|_| |_|_| |_|_|_| |_|\\__, |", "#f472b6"},
		{"      |_|                                |___/", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintf(w, "  %s\n\n", out.String("v"+version).Faint())
}
