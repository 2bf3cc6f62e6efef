package util

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`)))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not survive a commit")
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		r.n--
		p[0] = 'x'
		return 1, nil
	}
	return 0, errors.New("connection reset")
}

func TestCopyToFileAtomicLeavesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01.jpg")

	_, err := CopyToFileAtomic(path, &failingReader{n: 3}, nil)
	require.Error(t, err)

	assert.False(t, Exists(path))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCopyToFileAtomicReportsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "02.png")

	var last int64
	n, err := CopyToFileAtomic(path, strings.NewReader("pixels"), func(done int64) { last = done })
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	assert.EqualValues(t, 6, last)
	assert.True(t, NonEmptyFile(path))
}

func TestRemoveStaleTemps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.jpg"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TempPrefix+"02.jpg-123"), []byte("b"), 0644))

	n, err := RemoveStaleTemps(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, Exists(filepath.Join(dir, "01.jpg")))

	n, err = RemoveStaleTemps(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStrayDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Done #1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Done #1.cbz"), []byte("zip"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "Partial #2"), 0755))

	dirs, err := StrayDirs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "Done #1")}, dirs)
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	assert.False(t, NonEmptyFile(empty))
	assert.False(t, NonEmptyFile(dir))
	assert.False(t, NonEmptyFile(filepath.Join(dir, "nope")))
}

func TestDoWithRetryRecoversFrom5xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(srv.Client(), req, 3, time.Millisecond)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestDoWithRetryGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(srv.Client(), req, 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestClientInjectsHeaders(t *testing.T) {
	var ua, cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		cookie = r.Header.Get("Cookie")
	}))
	defer srv.Close()

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("\n  session=abc  \nignored=1\n"), 0644))

	c, err := NewHTTPClient(HTTPClientOptions{
		Timeout:    5 * time.Second,
		UserAgent:  "snag-test",
		Cookie:     "lang=en",
		CookieFile: cookieFile,
	})
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "snag-test", ua)
	assert.Equal(t, "lang=en; session=abc", cookie)
}

func TestHuman(t *testing.T) {
	assert.Equal(t, "0 B", Human(-5))
	assert.Equal(t, "1.0 KiB", Human(1024))
}
