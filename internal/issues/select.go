// Package issues narrows a series' issue list down to what the user asked
// for on the command line.
package issues

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brogergvhs/comicsnag/internal/comics"
)

// Filter applies the first non-empty selector: one issue (1-based index or
// exact title), an a-b range, or a comma list. No selector selects all.
func Filter(all []comics.Issue, one, rng, list string) ([]comics.Issue, error) {
	switch {
	case strings.TrimSpace(one) != "":
		return Single(all, one)
	case strings.TrimSpace(rng) != "":
		return Range(all, rng)
	case strings.TrimSpace(list) != "":
		return List(all, list)
	}

	return all, nil
}

func Single(all []comics.Issue, one string) ([]comics.Issue, error) {
	one = strings.TrimSpace(one)

	if byTitle := ByTitle(all, one); len(byTitle) > 0 {
		return byTitle, nil
	}

	idx, err := atoi(one)
	if err != nil {
		return nil, fmt.Errorf("no issue titled %q", one)
	}
	if idx < 1 || idx > len(all) {
		return nil, fmt.Errorf("issue %d out of range 1-%d", idx, len(all))
	}

	return []comics.Issue{all[idx-1]}, nil
}

// ByTitle matches titles case-insensitively, ignoring surrounding space.
func ByTitle(all []comics.Issue, title string) []comics.Issue {
	var out []comics.Issue
	for _, is := range all {
		if strings.EqualFold(strings.TrimSpace(is.Title), title) {
			out = append(out, is)
		}
	}
	return out
}

func Range(all []comics.Issue, rng string) ([]comics.Issue, error) {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("range %q is not <from>-<to>", rng)
	}

	start, err1 := atoi(parts[0])
	end, err2 := atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("range %q is not <from>-<to>", rng)
	}
	if start <= 0 || start > end || end > len(all) {
		return nil, fmt.Errorf("range %d-%d outside 1-%d", start, end, len(all))
	}

	return all[start-1 : end], nil
}

// List keeps the order given and drops repeats.
func List(all []comics.Issue, list string) ([]comics.Issue, error) {
	seen := map[int]bool{}
	out := []comics.Issue{}

	for _, n := range strings.Split(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}

		idx, err := atoi(n)
		if err != nil {
			return nil, fmt.Errorf("list entry %q is not a number", n)
		}
		if idx < 1 || idx > len(all) {
			return nil, fmt.Errorf("issue %d out of range 1-%d", idx, len(all))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true

		out = append(out, all[idx-1])
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("empty issue list %q", list)
	}

	return out, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
