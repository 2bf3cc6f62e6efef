package downloader

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/util"
)

// Progress receives page counts while an issue downloads. *ui.IssueBar
// satisfies it.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type Downloader struct {
	client  *http.Client
	root    string
	workers int
	retries int
	backoff time.Duration
	timeout time.Duration
	referer string
	log     Logger
}

type Options struct {
	Root    string
	Workers int
	Retries int
	Backoff time.Duration
	// Timeout bounds a single page request. Zero leaves it to the client.
	Timeout time.Duration
	Referer string
	Logger  Logger
}

func New(c *http.Client, opts Options) *Downloader {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}

	return &Downloader{
		client:  c,
		root:    opts.Root,
		workers: opts.Workers,
		retries: opts.Retries,
		backoff: opts.Backoff,
		timeout: opts.Timeout,
		referer: opts.Referer,
		log:     opts.Logger,
	}
}

// PageFailure is a page that could not be fetched after every retry.
type PageFailure struct {
	Seq int
	URL string
	Err error
}

type Result struct {
	Dir             string
	Fetched         int
	Skipped         int
	Failed          int
	Bytes           int64
	Failures        []PageFailure
	AlreadyArchived bool
}

// Complete reports whether every page of the issue is on disk.
func (r Result) Complete() bool {
	return r.Failed == 0
}

func (d *Downloader) debugf(format string, args ...any) {
	if d.log != nil {
		d.log.Debugf(format, args...)
	}
}

// ArchivePath is where the finished archive of issueTitle lives.
func (d *Downloader) ArchivePath(issueTitle string) string {
	return filepath.Join(d.root, comics.SanitizeTitle(issueTitle)+".cbz")
}

// IssueDir is the working directory of issueTitle.
func (d *Downloader) IssueDir(issueTitle string) string {
	return filepath.Join(d.root, comics.SanitizeTitle(issueTitle))
}

// Retrieve brings every page in refs to disk under the issue's working
// directory. Pages already present are kept, so an interrupted issue resumes
// where it stopped. An issue with an archive is left alone entirely.
func (d *Downloader) Retrieve(ctx context.Context, issueTitle string, refs []comics.ImageRef, progress Progress) (Result, error) {
	if util.Exists(d.ArchivePath(issueTitle)) {
		return Result{AlreadyArchived: true}, nil
	}

	dir := d.IssueDir(issueTitle)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dir, err)
	}

	if n, err := util.RemoveStaleTemps(dir); err != nil {
		return Result{}, err
	} else if n > 0 {
		d.debugf("removed %d partial files in %s\n", n, dir)
	}

	res := Result{Dir: dir}

	pending := make([]comics.ImageRef, 0, len(refs))
	for _, r := range refs {
		if util.NonEmptyFile(filepath.Join(dir, r.Filename())) {
			res.Skipped++
			continue
		}
		pending = append(pending, r)
	}

	if len(pending) == 0 {
		if progress != nil {
			progress.Update(len(refs), len(refs), 0)
			progress.MarkDone()
		}
		return res, nil
	}

	d.debugf("%s: %d pages to fetch, %d already present\n", issueTitle, len(pending), res.Skipped)

	st := &issueState{done: res.Skipped, total: len(refs), progress: progress}
	st.report()

	failures := d.runPool(ctx, dir, pending, st)

	if progress != nil {
		progress.MarkDone()
	}

	res.Fetched = st.fetched
	res.Bytes = st.written

	if err := ctx.Err(); err != nil {
		return res, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Seq < failures[j].Seq })
	res.Failures = failures
	res.Failed = len(failures)

	for _, f := range failures {
		if d.log != nil {
			d.log.Warnf("%s: page %d: %v\n", issueTitle, f.Seq, f.Err)
		}
	}

	return res, nil
}

func (d *Downloader) downloadWithRetry(ctx context.Context, u, output string, meter *pageMeter) (int64, error) {
	var err error
	for attempt := 1; attempt <= d.retries; attempt++ {
		var n int64
		meter.reset()
		n, err = d.download(ctx, u, output, meter.add)
		if err == nil {
			return n, nil
		}

		if attempt == d.retries {
			break
		}

		d.debugf("retry %d/%d for %s: %v\n", attempt, d.retries, u, err)
		if serr := util.Sleep(ctx, time.Duration(attempt)*d.backoff); serr != nil {
			meter.reset()
			return 0, serr
		}
	}

	meter.reset()
	return 0, err
}

func (d *Downloader) download(ctx context.Context, u, output string, progress func(done int64)) (int64, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	if d.referer != "" {
		req.Header.Set("Referer", d.referer)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); !strings.HasPrefix(mt, "image/") {
			return 0, fmt.Errorf("unexpected MIME: %s", ct)
		}
	}

	return util.CopyToFileAtomic(output, resp.Body, progress)
}
