package comics

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const reservedChars = `/\:*?"<>|`

// SanitizeTitle turns a host supplied title into a single path component.
func SanitizeTitle(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(reservedChars, r), unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}

		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "untitled"
	}

	return out
}
