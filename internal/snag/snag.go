// Package snag runs the per-issue pipeline for a batch of issues of one
// series: page discovery or the cached page list, then retrieval, then
// archiving.
package snag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/comicsnag/internal/archive"
	"github.com/brogergvhs/comicsnag/internal/cache"
	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/downloader"
	"github.com/brogergvhs/comicsnag/internal/util"
)

type Status string

const (
	StatusDone       Status = "done"
	StatusSkipped    Status = "skipped"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

var (
	ErrAlreadyArchived = errors.New("already archived")
	ErrInProgress      = errors.New("already being processed")

	// ErrIncomplete marks a run where some issues failed. The per-issue
	// cause stays in the chain but never makes the run fatal.
	ErrIncomplete = errors.New("issues not completed")
)

// Outcome is what happened to one issue. Err carries the reason for every
// status but done.
type Outcome struct {
	Issue  comics.Issue
	Status Status
	Err    error
	Pages  int
	Result downloader.Result
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type Discoverer interface {
	Discover(ctx context.Context, issue comics.Issue) ([]comics.ImageRef, error)
}

type Runner struct {
	prober  Discoverer
	dl      *downloader.Downloader
	store   *cache.Store
	workers int
	track   func(title string) downloader.Progress
	log     Logger

	mu     sync.Mutex
	active map[string]bool
}

type Options struct {
	IssueWorkers int
	// Progress returns a progress sink for an issue. Nil disables progress.
	Progress func(title string) downloader.Progress
	Logger   Logger
}

func New(p Discoverer, dl *downloader.Downloader, store *cache.Store, opts Options) *Runner {
	if opts.IssueWorkers < 1 {
		opts.IssueWorkers = 1
	}

	return &Runner{
		prober:  p,
		dl:      dl,
		store:   store,
		workers: opts.IssueWorkers,
		track:   opts.Progress,
		log:     opts.Logger,
		active:  map[string]bool{},
	}
}

func (r *Runner) debugf(format string, args ...any) {
	if r.log != nil {
		r.log.Debugf(format, args...)
	}
}

func (r *Runner) infof(format string, args ...any) {
	if r.log != nil {
		r.log.Infof(format, args...)
	}
}

func (r *Runner) warnf(format string, args ...any) {
	if r.log != nil {
		r.log.Warnf(format, args...)
	}
}

func (r *Runner) errorf(format string, args ...any) {
	if r.log != nil {
		r.log.Errorf(format, args...)
	}
}

// Run processes issues of series. A failing issue never stops the batch;
// only cancelling ctx does, in which case issues not yet started are left
// out of the summary.
func (r *Runner) Run(ctx context.Context, series comics.Series, list []comics.Issue) Summary {
	start := time.Now()
	entry := r.loadCache(series)

	outcomes := make([]Outcome, len(list))

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, is := range list {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			outcomes[i] = r.runIssue(ctx, series, entry, is)
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{Elapsed: time.Since(start), Interrupted: ctx.Err() != nil}
	for _, o := range outcomes {
		if o.Status != "" {
			s.add(o)
		}
	}

	return s
}

func (r *Runner) loadCache(series comics.Series) cache.Entry {
	entry, err := r.store.Load(series.Title)
	switch {
	case err == nil:
		r.debugf("cache for %s has %d issues\n", series.Title, len(entry))
		return entry
	case errors.Is(err, cache.ErrNotFound):
		return cache.Entry{}
	case errors.Is(err, comics.ErrCacheCorrupt):
		r.warnf("%v; discarding it and discovering pages again\n", err)
		if derr := r.store.Discard(series.Title); derr != nil {
			r.warnf("discard cache: %v\n", derr)
		}
		return cache.Entry{}
	default:
		r.warnf("read cache for %s: %v\n", series.Title, err)
		return cache.Entry{}
	}
}

func (r *Runner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[key] {
		return false
	}
	r.active[key] = true
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

func (r *Runner) runIssue(ctx context.Context, series comics.Series, entry cache.Entry, is comics.Issue) Outcome {
	out := Outcome{Issue: is}

	key := is.DirName()
	if !r.acquire(key) {
		out.Status, out.Err = StatusSkipped, ErrInProgress
		return out
	}
	defer r.release(key)

	if util.Exists(r.dl.ArchivePath(is.Title)) {
		dir := r.dl.IssueDir(is.Title)
		if util.Exists(dir) {
			if err := util.CleanupFolder(dir); err != nil {
				r.warnf("remove leftover %s: %v\n", dir, err)
			} else {
				r.debugf("removed leftover %s\n", dir)
			}
		}

		r.infof("%s already archived, skipping\n", is.Title)
		out.Status, out.Err = StatusSkipped, ErrAlreadyArchived
		return out
	}

	refs := entry.Refs(is.Title)
	if refs != nil {
		r.debugf("%s: %d pages from cache\n", is.Title, len(refs))
	} else {
		var err error
		refs, err = r.prober.Discover(ctx, is)
		if err != nil {
			r.errorf("%s: %v\n", is.Title, err)
			out.Status, out.Err = statusFor(ctx), err
			return out
		}

		if err := r.store.Merge(ctx, series.Title, is.Title, comics.URLsFromRefs(refs)); err != nil {
			r.warnf("cache %s: %v\n", is.Title, err)
		}
	}
	out.Pages = len(refs)

	var progress downloader.Progress
	if r.track != nil {
		progress = r.track(is.Title)
		defer progress.MarkDone()
	}

	res, err := r.dl.Retrieve(ctx, is.Title, refs, progress)
	out.Result = res
	if err != nil {
		out.Status, out.Err = statusFor(ctx), err
		return out
	}

	if res.AlreadyArchived {
		out.Status, out.Err = StatusSkipped, ErrAlreadyArchived
		return out
	}

	if !res.Complete() {
		out.Status = StatusIncomplete
		out.Err = fmt.Errorf("%d of %d pages missing, left unarchived: %w", res.Failed, len(refs), res.Failures[0].Err)
		r.warnf("%s: %v\n", is.Title, out.Err)
		return out
	}

	ar, err := archive.Archive(res.Dir)
	if err != nil {
		out.Status, out.Err = StatusFailed, err
		r.errorf("%s: %v\n", is.Title, err)
		return out
	}
	if ar.Warning != nil {
		r.warnf("%s: %v\n", is.Title, ar.Warning)
	}

	r.infof("%s: %d pages archived to %s\n", is.Title, ar.Pages, ar.Path)
	out.Status = StatusDone
	return out
}

// statusFor marks work cut short by cancellation as incomplete rather than
// failed; its directory is resumable.
func statusFor(ctx context.Context) Status {
	if ctx.Err() != nil {
		return StatusIncomplete
	}
	return StatusFailed
}

// Summary aggregates a run.
type Summary struct {
	Outcomes    []Outcome
	Done        int
	Skipped     int
	Incomplete  int
	Failed      int
	Fetched     int
	Bytes       int64
	Elapsed     time.Duration
	Interrupted bool
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.Fetched += o.Result.Fetched
	s.Bytes += o.Result.Bytes

	switch o.Status {
	case StatusDone:
		s.Done++
	case StatusSkipped:
		s.Skipped++
	case StatusIncomplete:
		s.Incomplete++
	case StatusFailed:
		s.Failed++
	}
}

// Err is nil when every attempted issue is done or skipped. Otherwise it
// wraps the first problem so callers can classify it.
func (s Summary) Err() error {
	if s.Interrupted {
		return context.Canceled
	}

	bad := s.Incomplete + s.Failed
	if bad == 0 {
		return nil
	}

	for _, o := range s.Outcomes {
		if o.Status == StatusIncomplete || o.Status == StatusFailed {
			return fmt.Errorf("%w: %d of %d, first: %s: %w", ErrIncomplete, bad, len(s.Outcomes), o.Issue.Title, o.Err)
		}
	}

	return nil
}
