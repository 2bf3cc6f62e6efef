package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/brogergvhs/comicsnag/internal/util"
)

// Stats is the end-of-run tally shown after a download.
type Stats struct {
	Done       int
	Skipped    int
	Incomplete int
	Failed     int
	Pages      int
	Bytes      int64
	Elapsed    time.Duration
}

// Problem is one issue worth calling out in the summary.
type Problem struct {
	Title  string
	Status string
	Reason string
}

func RenderStats(w io.Writer, s Stats, problems []Problem) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Download Summary:")
	_, _ = fmt.Fprintf(w, "Archived:   %d\n", s.Done)
	_, _ = fmt.Fprintf(w, "Skipped:    %d\n", s.Skipped)
	if s.Incomplete > 0 {
		_, _ = fmt.Fprintf(w, "Incomplete: %d (rerun to resume)\n", s.Incomplete)
	}
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "Failed:     %d\n", s.Failed)
	}
	_, _ = fmt.Fprintf(w, "Pages:      %s\n", humanize.Comma(int64(s.Pages)))
	_, _ = fmt.Fprintf(w, "Data:       %s\n", util.Human(s.Bytes))
	_, _ = fmt.Fprintf(w, "Time:       %s\n", s.Elapsed.Round(time.Second))

	if len(problems) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	for _, p := range problems {
		_, _ = fmt.Fprintf(w, " - %s [%s]: %s\n", p.Title, p.Status, p.Reason)
	}
}
