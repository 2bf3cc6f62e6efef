package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultWidth = 70
	maxWidth     = 118
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	tagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	blurbStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Width is the usable terminal width, capped for readability.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 2 {
		return defaultWidth
	}

	return min(w-2, maxWidth)
}

// SeriesInfo is what RenderSeries shows about one series.
type SeriesInfo struct {
	Title    string
	Genres   []string
	Synopsis string
	Issues   []string
}

// RenderSeries writes the genre tags, the wrapped synopsis and the numbered
// issue list.
func RenderSeries(w io.Writer, info SeriesInfo, width int) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(info.Title))

	if len(info.Genres) > 0 {
		tags := make([]string, len(info.Genres))
		for i, g := range info.Genres {
			tags[i] = "[" + g + "]"
		}
		_, _ = fmt.Fprintln(w, tagStyle.Render(strings.Join(tags, " ")))
	}

	if info.Synopsis != "" {
		_, _ = fmt.Fprintln(w)
		for _, line := range strings.Split(info.Synopsis, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			_, _ = fmt.Fprintln(w, blurbStyle.Width(width).Render(line))
		}
	}

	if len(info.Issues) == 0 {
		return
	}

	count := len(info.Issues)
	verb, plural := "are", "s"
	if count == 1 {
		verb, plural = "is", ""
	}

	_, _ = fmt.Fprintf(w, "\nThere %s %d comic%s available:\n", verb, count, plural)
	for i, t := range info.Issues {
		_, _ = fmt.Fprintf(w, " [%d] %s\n", i+1, t)
	}
}
