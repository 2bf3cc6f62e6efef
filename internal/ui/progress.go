package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/brogergvhs/comicsnag/internal/util"
)

const titleWidth = 32

// Bars draws one progress line per issue being retrieved.
type Bars struct {
	p *mpb.Progress
}

// NewBars renders on stdout when it is a terminal and discards otherwise.
// Bars still running when ctx ends are aborted.
func NewBars(ctx context.Context) *Bars {
	var out io.Writer = io.Discard
	if Interactive() {
		out = os.Stdout
	}

	return newBars(ctx, out)
}

func newBars(ctx context.Context, out io.Writer) *Bars {
	return &Bars{p: mpb.NewWithContext(ctx,
		mpb.WithWidth(40),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)}
}

// Interactive reports whether stdout is attached to a terminal.
func Interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Wait blocks until every bar has finished rendering.
func (b *Bars) Wait() {
	b.p.Wait()
}

// Track adds a bar for one issue. The total is unknown until the first Update.
func (b *Bars) Track(title string) *IssueBar {
	ib := &IssueBar{start: time.Now()}

	ib.bar = b.p.New(0,
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(shorten(title, titleWidth), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WCSyncWidth), "done"),
			decor.CountersNoUnit(" %d/%d", decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string {
				return " " + util.Human(ib.bytes.Load())
			}, decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string {
				return fmt.Sprintf(" %s", ib.elapsed().Round(time.Second))
			}),
		),
	)

	return ib
}

// IssueBar implements the downloader's progress sink.
type IssueBar struct {
	bar   *mpb.Bar
	bytes atomic.Int64
	start time.Time
	took  atomic.Int64
	final atomic.Bool
}

func (ib *IssueBar) elapsed() time.Duration {
	if ib.final.Load() {
		return time.Duration(ib.took.Load())
	}
	return time.Since(ib.start)
}

func (ib *IssueBar) Update(done, total int, bytes int64) {
	if ib.final.Load() {
		return
	}

	if total > 0 {
		ib.bar.SetTotal(int64(total), false)
	}
	ib.bytes.Store(bytes)
	ib.bar.SetCurrent(int64(done))
}

// MarkDone completes the bar. An issue that stopped short keeps its real
// page count instead of jumping to 100%. Safe to call more than once.
func (ib *IssueBar) MarkDone() {
	if ib.final.Swap(true) {
		return
	}

	ib.took.Store(int64(time.Since(ib.start)))
	ib.bar.SetTotal(-1, true)
}

func shorten(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
