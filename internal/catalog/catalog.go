package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/source"
)

// Detail is everything the series page says about a series.
type Detail struct {
	Series   comics.Series
	Issues   []comics.Issue
	Genres   []string
	Synopsis string
}

type Catalog struct {
	src       source.ContentSource
	searchURL string
	sel       config.Selectors
}

func New(src source.ContentSource, searchURL string, sel config.Selectors) *Catalog {
	return &Catalog{
		src:       src,
		searchURL: searchURL,
		sel:       sel,
	}
}

// NormalizeTerm folds compatibility characters and collapses whitespace.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(term)), " ")
}

// SearchURL builds the query the way the host's own search form does,
// spaces becoming '+'.
func (c *Catalog) SearchURL(term string) string {
	return c.searchURL + "?key=" + url.QueryEscape(NormalizeTerm(term))
}

// FindSeries returns the series candidates for term in page order. No match
// is an empty result, not an error.
func (c *Catalog) FindSeries(ctx context.Context, term string) ([]comics.Series, error) {
	if NormalizeTerm(term) == "" {
		return nil, fmt.Errorf("empty search term")
	}

	target := c.SearchURL(term)
	root, err := c.src.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	out := []comics.Series{}
	for _, n := range root.Find(c.sel.SearchResult) {
		title, href, ok := link(n)
		if !ok {
			continue
		}
		out = append(out, comics.Series{Title: title, URL: source.Resolve(target, href)})
	}

	return out, nil
}

func (c *Catalog) ListIssues(ctx context.Context, s comics.Series) ([]comics.Issue, error) {
	d, err := c.Details(ctx, s)
	if err != nil {
		return nil, err
	}

	return d.Issues, nil
}

// Details fetches the series page once. A page without any issue link means
// the host layout changed; genres and synopsis are optional.
func (c *Catalog) Details(ctx context.Context, s comics.Series) (Detail, error) {
	root, err := c.src.Fetch(ctx, s.URL)
	if err != nil {
		return Detail{}, fmt.Errorf("series %q: %w", s.Title, err)
	}

	d := Detail{Series: s}

	seen := map[string]bool{}
	for _, n := range root.Find(c.sel.IssueLink) {
		title, href, ok := link(n)
		if !ok {
			continue
		}

		u := source.Resolve(s.URL, href)
		if seen[u] {
			continue
		}
		seen[u] = true

		d.Issues = append(d.Issues, comics.Issue{Title: title, URL: u})
	}

	if len(d.Issues) == 0 {
		return Detail{}, fmt.Errorf("series %q: no %q elements: %w", s.Title, c.sel.IssueLink, comics.ErrContentShape)
	}

	for _, n := range root.Find(c.sel.Genre) {
		if g := n.Text(); g != "" {
			d.Genres = append(d.Genres, g)
		}
	}

	if nodes := root.Find(c.sel.Synopsis); len(nodes) > 0 {
		d.Synopsis = nodes[0].Text()
	}

	return d, nil
}

func link(n source.Node) (title, href string, ok bool) {
	href, ok = n.Attr("href")
	if !ok || href == "" {
		if inner := n.Find("a[href]"); len(inner) > 0 {
			href, ok = inner[0].Attr("href")
		}
	}
	if !ok || href == "" {
		return "", "", false
	}

	title = strings.Join(strings.Fields(n.Text()), " ")
	if title == "" {
		return "", "", false
	}

	return title, href, true
}
