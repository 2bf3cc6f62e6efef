package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/brogergvhs/comicsnag/internal/comics"
)

type issueState struct {
	mu       sync.Mutex
	done     int
	total    int
	fetched  int
	shown    int64
	written  int64
	progress Progress
}

// report must be called with mu held or before the pool starts.
func (s *issueState) report() {
	if s.progress != nil {
		s.progress.Update(s.done, s.total, s.shown)
	}
}

// pageMeter forwards the bytes of one page to the issue total. Every attempt
// streams the page from zero, so reset takes back what a failed attempt showed.
type pageMeter struct {
	st   *issueState
	last int64
}

func (m *pageMeter) add(done int64) {
	delta := done - m.last
	if delta <= 0 {
		return
	}

	m.last = done
	m.st.mu.Lock()
	m.st.shown += delta
	m.st.report()
	m.st.mu.Unlock()
}

func (m *pageMeter) reset() {
	if m.last == 0 {
		return
	}

	m.st.mu.Lock()
	m.st.shown -= m.last
	m.st.report()
	m.st.mu.Unlock()
	m.last = 0
}

// runPool fetches pending with a fixed number of workers. Jobs are handed out
// in ascending page order. Cancellation stops handing out work; pages in
// flight finish or are discarded.
func (d *Downloader) runPool(ctx context.Context, dir string, pending []comics.ImageRef, st *issueState) []PageFailure {
	workers := d.workers
	if workers > len(pending) {
		workers = len(pending)
	}

	var failures []PageFailure
	jobs := make(chan comics.ImageRef)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for ref := range jobs {
			path := filepath.Join(dir, ref.Filename())
			n, err := d.downloadWithRetry(ctx, ref.URL, path, &pageMeter{st: st})

			st.mu.Lock()
			switch {
			case err != nil && ctx.Err() != nil:
				// interrupted, not failed
			case err != nil:
				failures = append(failures, PageFailure{
					Seq: ref.Seq,
					URL: ref.URL,
					Err: fmt.Errorf("%w: %w", comics.ErrPageFetch, err),
				})
				st.done++
			default:
				st.fetched++
				st.written += n
				st.done++
			}
			st.report()
			st.mu.Unlock()
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}

feed:
	for _, ref := range pending {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- ref:
		}
	}

	close(jobs)
	wg.Wait()

	return failures
}
