package snag

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/comicsnag/internal/archive"
	"github.com/brogergvhs/comicsnag/internal/cache"
	"github.com/brogergvhs/comicsnag/internal/catalog"
	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/downloader"
	"github.com/brogergvhs/comicsnag/internal/probe"
	"github.com/brogergvhs/comicsnag/internal/source"
)

// site imitates the comic host: a search page with 22 results, a series
// page with 5 issues and a full view of 5 pages for every issue.
type site struct {
	srv *httptest.Server

	mu      sync.Mutex
	hits    map[string]int
	missing map[string]bool
}

func newSite(t *testing.T) *site {
	t.Helper()

	s := &site{hits: map[string]int{}, missing: map[string]bool{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	missing := s.missing[r.URL.Path]
	s.mu.Unlock()

	if missing {
		http.NotFound(w, r)
		return
	}

	p := r.URL.Path
	switch {
	case p == "/comic-search":
		var b strings.Builder
		for i := 0; i < 22; i++ {
			fmt.Fprintf(&b, `<a class="egb-serie" href="/comic/dark-tower-%d">Dark Tower %d</a>`, i, i)
		}
		_, _ = w.Write([]byte(b.String()))
	case p == "/comic/dark-tower-0":
		var b strings.Builder
		b.WriteString(`<ul class="anime-genres"><a>Horror</a></ul><div class="detail-desc-content"><p>Roland.</p></div>`)
		for i := 5; i >= 1; i-- {
			fmt.Fprintf(&b, `<a class="ch-name" href="/dark-tower/issue-%d">Dark Tower - Lady of Shadows #%d</a>`, i, i)
		}
		_, _ = w.Write([]byte(b.String()))
	case strings.HasSuffix(p, "/full"):
		issue := strings.TrimSuffix(strings.TrimPrefix(p, "/dark-tower/"), "/full")
		var b strings.Builder
		for i := 1; i <= 5; i++ {
			fmt.Fprintf(&b, `<img class="chapter_img" src="/img/%s/%d.jpg">`, issue, i)
		}
		_, _ = w.Write([]byte(b.String()))
	case strings.HasPrefix(p, "/img/"):
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg:" + p))
	default:
		http.NotFound(w, r)
	}
}

func (s *site) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for p, c := range s.hits {
		if strings.HasPrefix(p, prefix) {
			n += c
		}
	}
	return n
}

type fixture struct {
	site    *site
	root    string
	catalog *catalog.Catalog
	store   *cache.Store
	runner  *Runner
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	st := newSite(t)
	root := t.TempDir()
	client := st.srv.Client()

	src := source.NewHTTPSource(client, source.Options{Attempts: 1})
	store := cache.NewStore(root)
	dl := downloader.New(client, downloader.Options{Root: root, Workers: 3, Retries: 2, Backoff: time.Millisecond})
	p := probe.New(src, probe.Options{AllowExt: config.DefaultConfig().AllowExt})

	return &fixture{
		site:    st,
		root:    root,
		catalog: catalog.New(src, st.srv.URL+"/comic-search", config.DefaultSelectors()),
		store:   store,
		runner:  New(p, dl, store, Options{IssueWorkers: workers}),
	}
}

func TestDarkTowerEndToEnd(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	found, err := f.catalog.FindSeries(ctx, "dark tower")
	require.NoError(t, err)
	require.Len(t, found, 22)

	series := found[0]
	all, err := f.catalog.ListIssues(ctx, series)
	require.NoError(t, err)
	require.Len(t, all, 5)

	sum := f.runner.Run(ctx, series, all[:1])
	require.NoError(t, sum.Err())
	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, 5, sum.Fetched)

	cbz := filepath.Join(f.root, "Dark Tower - Lady of Shadows #5.cbz")
	names, err := archive.Entries(cbz)
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg", "02.jpg", "03.jpg", "04.jpg", "05.jpg"}, names)
	assert.NoDirExists(t, filepath.Join(f.root, "Dark Tower - Lady of Shadows #5"))

	entry, err := f.store.Load(series.Title)
	require.NoError(t, err)
	assert.Len(t, entry["Dark Tower - Lady of Shadows #5"], 5)
}

func TestRerunDoesNoNetworkIO(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	series := comics.Series{Title: "Dark Tower 0", URL: f.site.srv.URL + "/comic/dark-tower-0"}

	all, err := f.catalog.ListIssues(ctx, series)
	require.NoError(t, err)

	first := f.runner.Run(ctx, series, all)
	require.NoError(t, first.Err())
	assert.Equal(t, 5, first.Done)

	before := f.site.count("/dark-tower/") + f.site.count("/img/")
	again := f.runner.Run(ctx, series, all)
	require.NoError(t, again.Err())

	assert.Equal(t, 5, again.Skipped)
	for _, o := range again.Outcomes {
		assert.ErrorIs(t, o.Err, ErrAlreadyArchived)
	}
	assert.Equal(t, before, f.site.count("/dark-tower/")+f.site.count("/img/"))
}

func TestCachedPagesSkipDiscovery(t *testing.T) {
	f := newFixture(t, 1)
	series := comics.Series{Title: "Cached"}
	issue := comics.Issue{Title: "Cached #1", URL: f.site.srv.URL + "/dark-tower/issue-1"}

	urls := []string{f.site.srv.URL + "/img/x/1.jpg", f.site.srv.URL + "/img/x/2.jpg"}
	require.NoError(t, f.store.Save(series.Title, cache.Entry{"Cached #1": urls}))

	sum := f.runner.Run(context.Background(), series, []comics.Issue{issue})
	require.NoError(t, sum.Err())

	assert.Zero(t, f.site.count("/dark-tower/"), "no discovery for a cached issue")
	names, err := archive.Entries(filepath.Join(f.root, "Cached #1.cbz"))
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg", "02.jpg"}, names)
}

func TestCorruptCacheIsRediscovered(t *testing.T) {
	f := newFixture(t, 1)
	series := comics.Series{Title: "Broken"}
	require.NoError(t, os.WriteFile(f.store.Path(series.Title), []byte("{nope"), 0644))

	issue := comics.Issue{Title: "Broken #2", URL: f.site.srv.URL + "/dark-tower/issue-2"}
	sum := f.runner.Run(context.Background(), series, []comics.Issue{issue})
	require.NoError(t, sum.Err())
	assert.Equal(t, 1, sum.Done)

	entry, err := f.store.Load(series.Title)
	require.NoError(t, err)
	assert.Len(t, entry["Broken #2"], 5)
}

func TestFailuresDoNotStopTheBatch(t *testing.T) {
	f := newFixture(t, 2)
	series := comics.Series{Title: "Mixed"}
	base := f.site.srv.URL

	f.site.mu.Lock()
	f.site.missing["/img/issue-2/3.jpg"] = true
	f.site.mu.Unlock()

	list := []comics.Issue{
		{Title: "Mixed #1", URL: base + "/dark-tower/issue-1"},
		{Title: "Mixed #2", URL: base + "/dark-tower/issue-2"},
		{Title: "Gone", URL: base + "/nowhere"},
		{Title: "Mixed #3", URL: base + "/dark-tower/issue-3"},
	}
	sum := f.runner.Run(context.Background(), series, list)

	require.Len(t, sum.Outcomes, 4)
	byTitle := map[string]Outcome{}
	for _, o := range sum.Outcomes {
		byTitle[o.Issue.Title] = o
	}

	assert.Equal(t, StatusDone, byTitle["Mixed #1"].Status)
	assert.Equal(t, StatusDone, byTitle["Mixed #3"].Status)

	inc := byTitle["Mixed #2"]
	assert.Equal(t, StatusIncomplete, inc.Status)
	assert.ErrorIs(t, inc.Err, comics.ErrPageFetch)
	assert.NoFileExists(t, filepath.Join(f.root, "Mixed #2.cbz"))
	assert.FileExists(t, filepath.Join(f.root, "Mixed #2", "04.jpg"))

	gone := byTitle["Gone"]
	assert.Equal(t, StatusFailed, gone.Status)
	assert.ErrorIs(t, gone.Err, comics.ErrDiscoveryExhausted)

	assert.Equal(t, 2, sum.Done)
	assert.Equal(t, 1, sum.Incomplete)
	assert.Equal(t, 1, sum.Failed)
	assert.Error(t, sum.Err())

	// the missing page comes back; the rerun only fetches that page
	f.site.mu.Lock()
	delete(f.site.missing, "/img/issue-2/3.jpg")
	f.site.mu.Unlock()
	before := f.site.count("/img/issue-2/")

	again := f.runner.Run(context.Background(), series, list[1:2])
	require.NoError(t, again.Err())
	assert.Equal(t, 1, again.Outcomes[0].Result.Fetched)
	assert.Equal(t, 4, again.Outcomes[0].Result.Skipped)
	assert.Equal(t, before+1, f.site.count("/img/issue-2/"))
}

func TestStrayDirectoryNextToArchiveIsRemoved(t *testing.T) {
	f := newFixture(t, 1)
	issue := comics.Issue{Title: "Done #1", URL: f.site.srv.URL + "/dark-tower/issue-1"}

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "Done #1.cbz"), []byte("zip"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "Done #1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "Done #1", "01.jpg"), []byte("x"), 0644))

	sum := f.runner.Run(context.Background(), comics.Series{Title: "Done"}, []comics.Issue{issue})
	require.NoError(t, sum.Err())
	assert.Equal(t, 1, sum.Skipped)
	assert.ErrorIs(t, sum.Outcomes[0].Err, ErrAlreadyArchived)
	assert.NoDirExists(t, filepath.Join(f.root, "Done #1"))
	assert.FileExists(t, filepath.Join(f.root, "Done #1.cbz"))
	assert.Zero(t, f.site.count("/dark-tower/")+f.site.count("/img/"), "a leftover folder never triggers a download")
}

func TestDuplicateIssueInBatch(t *testing.T) {
	f := newFixture(t, 2)
	issue := comics.Issue{Title: "Twice #1", URL: f.site.srv.URL + "/dark-tower/issue-1"}

	sum := f.runner.Run(context.Background(), comics.Series{Title: "Twice"}, []comics.Issue{issue, issue})
	require.NoError(t, sum.Err())
	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, 1, sum.Skipped)
	assert.FileExists(t, filepath.Join(f.root, "Twice #1.cbz"))
}

func TestCancelledRunStartsNothing(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issue := comics.Issue{Title: "Never", URL: f.site.srv.URL + "/dark-tower/issue-1"}
	sum := f.runner.Run(ctx, comics.Series{Title: "Never"}, []comics.Issue{issue})

	assert.True(t, sum.Interrupted)
	assert.Empty(t, sum.Outcomes)
	assert.ErrorIs(t, sum.Err(), context.Canceled)
	assert.Zero(t, f.site.count("/"))
}
