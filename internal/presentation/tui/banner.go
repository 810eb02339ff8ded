package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the trio banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{"  _        _       ", "#818cf8"},
		{" | |_ _ __(_) ___  ", "#a78bfa"},
		{" | __| '__| |/ _ \\ ", "#c084fc"},
		{" | |_| |  | | (_) |", "#e879f9"},
		{"  \\__|_|  |_|\\___/ ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
