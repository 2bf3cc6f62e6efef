package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/archive"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/util"
)

var flagFixStray bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "List archives under the root and report leftover working folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			Root:         flagRoot,
		})
		if err != nil {
			return err
		}

		return verifyRoot(cmd, cfg.Root, flagFixStray)
	},
}

func verifyRoot(cmd *cobra.Command, root string, fix bool) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("cannot read root folder: %w", err)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 4, ' ', 0)
	_, _ = fmt.Fprintln(w, "ARCHIVE\tPAGES\tSTATUS")

	var archives, partial []string
	broken := 0
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "."):
			continue
		case e.IsDir():
			if !util.Exists(filepath.Join(root, name) + ".cbz") {
				partial = append(partial, name)
			}
		case strings.EqualFold(filepath.Ext(name), ".cbz"):
			archives = append(archives, name)
		}
	}
	sort.Strings(archives)

	for _, name := range archives {
		pages, err := archive.Entries(filepath.Join(root, name))
		if err != nil {
			broken++
			_, _ = fmt.Fprintf(w, "%s\t-\tunreadable: %v\n", name, err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\tok\n", name, len(pages))
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to flush table output: %v\n", err)
	}

	if len(partial) > 0 {
		_, _ = fmt.Fprintf(out, "\nUnfinished issues (rerun get to resume):\n")
		for _, p := range partial {
			_, _ = fmt.Fprintf(out, "  %s\n", p)
		}
	}

	stray, err := util.StrayDirs(root)
	if err != nil {
		return err
	}
	if len(stray) > 0 {
		_, _ = fmt.Fprintf(out, "\nFolders next to a finished archive:\n")
		for _, dir := range stray {
			if !fix {
				_, _ = fmt.Fprintf(out, "  %s\n", dir)
				continue
			}
			if err := util.CleanupFolder(dir); err != nil {
				_, _ = fmt.Fprintf(out, "  %s (remove failed: %v)\n", dir, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "  %s (removed)\n", dir)
		}
		if !fix {
			_, _ = fmt.Fprintln(out, "Use --fix to remove them.")
		}
	}

	if broken > 0 {
		return fmt.Errorf("%d unreadable archives", broken)
	}

	return nil
}

func init() {
	verifyCmd.Flags().BoolVar(&flagFixStray, "fix", false, "remove working folders that already have an archive")
	rootCmd.AddCommand(verifyCmd)
}
