// Package presentation renders terminal output for the CLI: the startup
// banner and glamour-rendered action documentation. Everything degrades
// to plain text when stdout is not a terminal, so piping stays clean.
package presentation

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// PrintBanner writes the startup banner to stdout. It prints nothing
// when stdout is not a terminal.
func PrintBanner(version string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"           _              ", "#4ade80"},
		{"  __ _ _ _| |__  ___ _ _  ", "#34d399"},
		{" / _` | '_| '_ \\/ _ \\ '_| ", "#2dd4bf"},
		{" \\__,_|_| |_.__/\\___/|_|  ", "#22d3ee"},
	}

	fmt.Println()
	for _, line := range lines {
		fmt.Println(termenv.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Println(termenv.String("  arbor " + version).Foreground(p.Color("#94a3b8")).Italic())
	fmt.Println()
}
