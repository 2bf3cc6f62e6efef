// Package cache keeps the discovered page URLs of a series in
// <root>/<series>.json so a rerun does not probe the host again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/util"
)

var ErrNotFound = errors.New("no cache for series")

// Entry maps a sanitized issue title to its page URLs in page order.
type Entry map[string][]string

// Refs returns the cached pages of issueTitle, or nil when it has none.
func (e Entry) Refs(issueTitle string) []comics.ImageRef {
	urls := e[comics.SanitizeTitle(issueTitle)]
	if len(urls) == 0 {
		return nil
	}

	return comics.RefsFromURLs(urls)
}

type Store struct {
	root string
	mu   sync.Mutex
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Path is the cache file of seriesTitle.
func (s *Store) Path(seriesTitle string) string {
	return filepath.Join(s.root, comics.SanitizeTitle(seriesTitle)+".json")
}

func (s *Store) Load(seriesTitle string) (Entry, error) {
	path := s.Path(seriesTitle)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, seriesTitle)
		}
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", comics.ErrCacheCorrupt, path, err)
	}
	if e == nil {
		e = Entry{}
	}

	return e, nil
}

// Save replaces the cache file atomically; a reader sees the old or the new
// content, never a mix.
func (s *Store) Save(seriesTitle string, e Entry) error {
	if e == nil {
		e = Entry{}
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}

	return util.WriteFileAtomic(s.Path(seriesTitle), append(data, '\n'))
}

// Merge records the pages of one issue without losing entries written by a
// concurrent worker or another process.
func (s *Store) Merge(ctx context.Context, seriesTitle, issueTitle string, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}

	lock := flock.New(s.Path(seriesTitle) + ".lock")
	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache %s: %w", seriesTitle, err)
	}
	if !ok {
		return fmt.Errorf("lock cache %s: not acquired", seriesTitle)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	e, err := s.Load(seriesTitle)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, comics.ErrCacheCorrupt):
		e = Entry{}
	case err != nil:
		return err
	}

	e[comics.SanitizeTitle(issueTitle)] = append([]string(nil), urls...)
	return s.Save(seriesTitle, e)
}

// Discard removes the cache file of seriesTitle. A missing file is fine.
func (s *Store) Discard(seriesTitle string) error {
	err := os.Remove(s.Path(seriesTitle))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
