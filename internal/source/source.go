// Package source fetches host pages and exposes them through a narrow node
// query interface, so the catalog and the prober never touch a markup
// library directly.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/util"
)

// Node is an opaque element of a fetched page.
type Node interface {
	Find(selector string) []Node
	Text() string
	Attr(name string) (string, bool)
}

type ContentSource interface {
	Fetch(ctx context.Context, pageURL string) (Node, error)
	Exists(ctx context.Context, resourceURL string) (bool, error)
}

// StatusError is a non-2xx answer from the host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404/410 answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone)
}

type HTTPSource struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	log      interface{ Debugf(string, ...any) }
}

type Options struct {
	Attempts int
	Backoff  time.Duration
	Logger   interface{ Debugf(string, ...any) }
}

func NewHTTPSource(c *http.Client, opts Options) *HTTPSource {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}

	return &HTTPSource{
		client:   c,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		log:      opts.Logger,
	}
}

func (s *HTTPSource) debugf(format string, args ...any) {
	if s.log != nil {
		s.log.Debugf(format, args...)
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, pageURL string) (Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := util.DoWithRetry(s.client, req, s.attempts, s.backoff)
	if err != nil {
		return nil, classify(ctx, pageURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	doc.Url = resp.Request.URL
	return selection{doc.Selection}, nil
}

// Exists checks a resource with HEAD. Hosts that refuse HEAD get a one byte
// ranged GET instead; the body is never read.
func (s *HTTPSource) Exists(ctx context.Context, resourceURL string) (bool, error) {
	code, err := s.probe(ctx, http.MethodHead, resourceURL)
	if err != nil {
		return false, err
	}

	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		s.debugf("HEAD refused for %s, falling back to ranged GET\n", resourceURL)
		if code, err = s.probe(ctx, http.MethodGet, resourceURL); err != nil {
			return false, err
		}
	}

	// only a definite "not there" ends a probe; a throttled or forbidden
	// answer says nothing about the page
	switch {
	case code >= 200 && code < 300:
		return true, nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return false, nil
	default:
		return false, &StatusError{URL: resourceURL, StatusCode: code}
	}
}

func (s *HTTPSource) probe(ctx context.Context, method, resourceURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, resourceURL, nil)
	if err != nil {
		return 0, err
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := util.DoWithRetry(s.client, req, s.attempts, s.backoff)
	if err != nil {
		return 0, classify(ctx, resourceURL, err)
	}
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

// ParseHTML reads a page that was obtained some other way.
func ParseHTML(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	return selection{doc.Selection}, nil
}

// classify marks transport failures as connectivity errors. Errors caused
// by the caller's own context pass through unchanged.
func classify(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %s: %w", comics.ErrConnectivity, target, err)
	}

	return fmt.Errorf("%s: %w", target, err)
}

type selection struct {
	s *goquery.Selection
}

func (n selection) Find(selector string) []Node {
	found := n.s.Find(selector)

	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, el *goquery.Selection) {
		out = append(out, selection{el})
	})

	return out
}

func (n selection) Text() string {
	return strings.TrimSpace(n.s.Text())
}

func (n selection) Attr(name string) (string, bool) {
	v, ok := n.s.Attr(name)
	return strings.TrimSpace(v), ok
}

// Resolve makes ref absolute against the page it was found on.
func Resolve(pageURL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return u.String()
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}

	return base.ResolveReference(u).String()
}
