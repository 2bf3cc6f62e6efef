// Package probe works out the ordered page list of an issue, either from the
// host's full view or by guessing successive image URLs.
package probe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/source"
)

// MaxPages stops a probe against a host that answers yes to everything.
const MaxPages = 999

// ExistsFunc answers whether a resource is present without downloading it.
type ExistsFunc func(ctx context.Context, resourceURL string) (bool, error)

// Sequence probes successive page numbers after first until none of the
// candidates for a number exists. The result is numbered 1..N with no gaps.
// A check that fails outright aborts the whole probe.
func Sequence(ctx context.Context, first comics.ImageRef, exists ExistsFunc) ([]comics.ImageRef, error) {
	t, err := ParseTemplate(first.URL)
	if err != nil {
		return nil, err
	}

	refs := []comics.ImageRef{{Seq: 1, URL: first.URL}}
	for n := t.Seq + 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(refs) >= MaxPages {
			return nil, fmt.Errorf("%w: more than %d pages probed from %s", comics.ErrContentShape, MaxPages, first.URL)
		}

		found := ""
		for _, cand := range t.Candidates(n) {
			ok, err := exists(ctx, cand)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("%w: probe page %d: %w", comics.ErrPageFetch, n, err)
			}
			if ok {
				found = cand
				break
			}
		}

		if found == "" {
			return refs, nil
		}

		refs = append(refs, comics.ImageRef{Seq: len(refs) + 1, URL: found})
	}
}

type Prober struct {
	src      source.ContentSource
	selector string
	allow    []string
	log      interface{ Debugf(string, ...any) }
}

type Options struct {
	// PageImage selects the page images on an issue page.
	PageImage string
	// AllowExt limits the accepted image extensions. Empty accepts any.
	AllowExt []string
	Logger   interface{ Debugf(string, ...any) }
}

func New(src source.ContentSource, opts Options) *Prober {
	if opts.PageImage == "" {
		opts.PageImage = ".chapter_img, .scan-page"
	}

	allow := make([]string, 0, len(opts.AllowExt))
	for _, e := range opts.AllowExt {
		allow = append(allow, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), ".")))
	}

	return &Prober{
		src:      src,
		selector: opts.PageImage,
		allow:    allow,
		log:      opts.Logger,
	}
}

func (p *Prober) debugf(format string, args ...any) {
	if p.log != nil {
		p.log.Debugf(format, args...)
	}
}

// Discover returns the pages of issue. The full view is tried first; when it
// lists at most one image the first page's image is used as a template for
// probing.
func (p *Prober) Discover(ctx context.Context, issue comics.Issue) ([]comics.ImageRef, error) {
	fullURL := strings.TrimSuffix(issue.URL, "/") + "/full"

	images, err := p.images(ctx, fullURL)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, comics.ErrConnectivity):
		return nil, fmt.Errorf("%w: %s: %w", comics.ErrDiscoveryExhausted, issue.Title, err)
	case err != nil:
		p.debugf("full view of %s unavailable: %v\n", issue.Title, err)
	case len(images) > 1:
		p.debugf("full view of %s lists %d pages\n", issue.Title, len(images))
		return p.checked(comics.RefsFromURLs(images))
	}

	if len(images) == 0 {
		images, err = p.images(ctx, issue.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %w", comics.ErrDiscoveryExhausted, issue.Title, err)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("%w: %s: no %q image on %s", comics.ErrDiscoveryExhausted, issue.Title, p.selector, issue.URL)
		}
	}

	p.debugf("probing pages of %s from %s\n", issue.Title, images[0])

	refs, err := Sequence(ctx, comics.ImageRef{Seq: 1, URL: images[0]}, p.src.Exists)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", issue.Title, err)
	}

	return p.checked(refs)
}

func (p *Prober) images(ctx context.Context, pageURL string) ([]string, error) {
	root, err := p.src.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, n := range root.Find(p.selector) {
		if src := imageSrc(n); src != "" {
			out = append(out, source.Resolve(pageURL, src))
		}
	}

	return out, nil
}

// lazy loaders keep the real address in one of these.
var srcAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

func imageSrc(n source.Node) string {
	for _, k := range srcAttrs {
		if v, ok := n.Attr(k); ok {
			if v = strings.TrimSpace(v); v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}

	// first srcset candidate, without its width descriptor
	if ss, ok := n.Attr("srcset"); ok {
		for part := range strings.SplitSeq(ss, ",") {
			if f := strings.Fields(part); len(f) > 0 {
				return f[0]
			}
		}
	}

	return ""
}

func (p *Prober) checked(refs []comics.ImageRef) ([]comics.ImageRef, error) {
	if len(p.allow) == 0 {
		return refs, nil
	}

	for _, r := range refs {
		if !slices.Contains(p.allow, r.Ext()) {
			return nil, fmt.Errorf("%w: page %d has extension %q", comics.ErrContentShape, r.Seq, r.Ext())
		}
	}

	return refs, nil
}
