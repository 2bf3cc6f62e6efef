package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user leaves a prompt with Ctrl-C / Ctrl-D.
var ErrAborted = errors.New("selection cancelled")

// AllIssues is the index PickIssue returns for the "everything" entry.
const AllIssues = -1

func AskTerm() (string, error) {
	prompt := promptui.Prompt{
		Label: "Comic name",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("search term cannot be empty")
			}
			return nil
		},
	}

	term, err := prompt.Run()
	if err != nil {
		return "", promptErr(err)
	}

	return strings.TrimSpace(term), nil
}

// PickIndex shows items and returns the chosen position.
func PickIndex(label string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("nothing to choose from")
	}

	sel := promptui.Select{
		Label:             label,
		Items:             items,
		Size:              15,
		StartInSearchMode: false,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
		},
	}

	idx, _, err := sel.Run()
	if err != nil {
		return 0, promptErr(err)
	}

	return idx, nil
}

// PickIssue is PickIndex with a leading "all issues" entry.
func PickIssue(titles []string) (int, error) {
	items := make([]string, 0, len(titles)+1)
	items = append(items, fmt.Sprintf("All %d issues", len(titles)))
	items = append(items, titles...)

	idx, err := PickIndex("Which one would you like?", items)
	if err != nil {
		return 0, err
	}
	if idx == 0 {
		return AllIssues, nil
	}

	return idx - 1, nil
}

func promptErr(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}

	return err
}
