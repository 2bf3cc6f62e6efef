package comics

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

type Series struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Issue struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DirName is the working directory name of the issue under the local root.
func (i Issue) DirName() string {
	return SanitizeTitle(i.Title)
}

// ArchiveName is the file name of the finished archive.
func (i Issue) ArchiveName() string {
	return i.DirName() + ".cbz"
}

// ImageRef is one page of an issue. Seq starts at 1.
type ImageRef struct {
	Seq int
	URL string
}

func (r ImageRef) Ext() string {
	p := r.URL
	if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
		p = u.Path
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return "jpg"
	}

	return ext
}

func (r ImageRef) Filename() string {
	return PageFilename(r.Seq, r.Ext())
}

// PageFilename pads seq to two digits. Past 99 pages the archive orders
// entries by number rather than by name.
func PageFilename(seq int, ext string) string {
	return fmt.Sprintf("%02d.%s", seq, strings.TrimPrefix(ext, "."))
}

// RefsFromURLs numbers urls 1..n in the given order.
func RefsFromURLs(urls []string) []ImageRef {
	out := make([]ImageRef, 0, len(urls))
	for i, u := range urls {
		out = append(out, ImageRef{Seq: i + 1, URL: u})
	}

	return out
}

func URLsFromRefs(refs []ImageRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.URL
	}

	return out
}
