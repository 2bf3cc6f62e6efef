package probe

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/brogergvhs/comicsnag/internal/comics"
)

var pageName = regexp.MustCompile(`^(\d+)\.([A-Za-z0-9]+)$`)

// Template is an image URL with its page number cut out, e.g.
// https://cdn.test/x/issue-5/ + 03 + .jpg
type Template struct {
	prefix string
	suffix string
	width  int
	Seq    int
	Ext    string
}

// ParseTemplate splits the trailing <n>.<ext> filename of raw. A zero padded
// number fixes the width the host uses; an unpadded one means no padding.
func ParseTemplate(raw string) (Template, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Template{}, fmt.Errorf("%w: image url %q: %w", comics.ErrContentShape, raw, err)
	}

	name := path.Base(u.Path)
	m := pageName.FindStringSubmatch(name)
	if m == nil {
		return Template{}, fmt.Errorf("%w: image name %q is not <number>.<ext>", comics.ErrContentShape, name)
	}

	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return Template{}, fmt.Errorf("%w: image number %q: %w", comics.ErrContentShape, m[1], err)
	}

	t := Template{Seq: seq, Ext: strings.ToLower(m[2])}
	if len(m[1]) > 1 && m[1][0] == '0' {
		t.width = len(m[1])
	}

	cut := strings.LastIndex(raw, name)
	if cut < 0 {
		// name was percent-decoded away from raw; rebuild from parts
		u.Path = strings.TrimSuffix(u.Path, name)
		u.RawQuery, u.Fragment = "", ""
		t.prefix = u.String()
		return t, nil
	}

	t.prefix = raw[:cut]
	t.suffix = strings.TrimPrefix(raw[cut:], m[1])
	return t, nil
}

// URL renders page n at the host's own width.
func (t Template) URL(n int) string {
	return t.prefix + fmt.Sprintf("%0*d", t.width, n) + t.suffix
}

// Candidates lists the renderings worth checking for page n: the host's
// width first, then two digit padding when that is different.
func (t Template) Candidates(n int) []string {
	own := t.URL(n)
	padded := t.prefix + fmt.Sprintf("%02d", n) + t.suffix
	if padded == own {
		return []string{own}
	}

	return []string{own, padded}
}
