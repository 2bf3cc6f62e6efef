package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/cache"
	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/downloader"
	"github.com/brogergvhs/comicsnag/internal/issues"
	"github.com/brogergvhs/comicsnag/internal/probe"
	"github.com/brogergvhs/comicsnag/internal/snag"
	"github.com/brogergvhs/comicsnag/internal/ui"
	"github.com/brogergvhs/comicsnag/internal/util"
)

var (
	// selection
	flagSeries   int
	flagIssue    string
	flagRange    string
	flagList     string
	flagAll      bool
	flagAllowExt string

	// runtime
	flagImageWorkers int
	flagIssueWorkers int
	flagRetries      int
	flagDryRun       bool

	// headers/auth
	flagCookie           string
	flagCookieFile       string
	flagUserAgent        string
	flagCloudflareBypass bool
)

func init() {
	getCmd := &cobra.Command{
		Use:     "get [term]",
		Aliases: []string{"download"},
		Short:   "Download issues of a series as CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:    runGet,
	}

	// selection
	getCmd.Flags().IntVar(&flagSeries, "series", 0, "pick the N-th search result (1-based)")
	getCmd.Flags().StringVar(&flagIssue, "issue", "", "download a single issue by index or exact title")
	getCmd.Flags().StringVar(&flagRange, "range", "", "download a range of issues by index (e.g. 2-6)")
	getCmd.Flags().StringVar(&flagList, "list", "", "download specific issue indices (e.g. 1,3,5)")
	getCmd.Flags().BoolVar(&flagAll, "all", false, "download every issue of the series")
	getCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "allowed image extensions (e.g. \"jpg|png\")")

	// runtime
	getCmd.Flags().IntVar(&flagImageWorkers, "image-workers", 0, "parallel image downloads per issue")
	getCmd.Flags().IntVar(&flagIssueWorkers, "issue-workers", 0, "parallel issue downloads")
	getCmd.Flags().IntVar(&flagRetries, "retries", 0, "attempts per request")
	getCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don't download")

	// headers/auth
	getCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	getCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	getCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	getCmd.Flags().BoolVar(&flagCloudflareBypass, "cloudflare-bypass", false, "mimic a browser TLS/header profile")

	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(config.Options{
		ImageWorkers:     flagImageWorkers,
		IssueWorkers:     flagIssueWorkers,
		Retries:          flagRetries,
		Cookie:           flagCookie,
		CookieFile:       flagCookieFile,
		UserAgent:        flagUserAgent,
		CloudflareBypass: flagCloudflareBypass,
	})
	if err != nil {
		return err
	}

	cfg := a.cfg
	if flagAllowExt != "" {
		cfg.AllowExt = splitExt(flagAllowExt)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if cfg.Debug {
		_, _ = fmt.Fprintln(out, "Full config:")
		cfg.Print(out)
		_, _ = fmt.Fprintln(out)
	}

	series, ok, err := a.pickSeries(ctx, cmd, args, flagSeries)
	if err != nil || !ok {
		return err
	}

	d, err := a.catalog.Details(ctx, series)
	if err != nil {
		return err
	}

	ui.RenderSeries(out, seriesInfo(d), ui.Width())
	_, _ = fmt.Fprintln(out)

	selected, err := selectIssues(d.Issues)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no issues selected")
	}

	dl := downloader.New(a.client, downloader.Options{
		Root:    cfg.Root,
		Workers: cfg.ImageWorkers,
		Retries: cfg.Retries,
		Backoff: cfg.RetryBackoff,
		Referer: cfg.BaseURL + "/",
		Logger:  a.log,
	})

	if flagDryRun {
		_, _ = fmt.Fprintf(out, "Dry-run: %d issues selected.\n\n", len(selected))
		for i, is := range selected {
			_, _ = fmt.Fprintf(out, "%3d) %s  [%s]\n    %s\n", i+1, is.Title, issueState(dl, is), is.URL)
		}
		return nil
	}

	if err := ensureRoot(cfg.Root); err != nil {
		return err
	}

	bars := ui.NewBars(ctx)
	runner := snag.New(
		probe.New(a.src, probe.Options{
			PageImage: cfg.Selectors.PageImage,
			AllowExt:  cfg.AllowExt,
			Logger:    a.log,
		}),
		dl,
		cache.NewStore(cfg.Root),
		snag.Options{
			IssueWorkers: cfg.IssueWorkers,
			Progress: func(title string) downloader.Progress {
				return bars.Track(title)
			},
			Logger: a.log,
		},
	)

	sum := runner.Run(ctx, series, selected)
	bars.Wait()

	ui.RenderStats(out, ui.Stats{
		Done:       sum.Done,
		Skipped:    sum.Skipped,
		Incomplete: sum.Incomplete,
		Failed:     sum.Failed,
		Pages:      sum.Fetched,
		Bytes:      sum.Bytes,
		Elapsed:    sum.Elapsed,
	}, problems(sum))

	if err := sum.Err(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "\nAll done.")
	return nil
}

func selectIssues(all []comics.Issue) ([]comics.Issue, error) {
	switch {
	case flagAll:
		return all, nil
	case flagIssue != "" || flagRange != "" || flagList != "":
		return issues.Filter(all, flagIssue, flagRange, flagList)
	case !ui.Interactive():
		return nil, fmt.Errorf("no issue selection, pass --issue, --range, --list or --all")
	}

	titles := make([]string, len(all))
	for i, is := range all {
		titles[i] = is.Title
	}

	idx, err := ui.PickIssue(titles)
	if err != nil {
		return nil, err
	}
	if idx == ui.AllIssues {
		return all, nil
	}

	return all[idx : idx+1], nil
}

func issueState(dl *downloader.Downloader, is comics.Issue) string {
	switch {
	case util.Exists(dl.ArchivePath(is.Title)):
		return "archived"
	case util.Exists(dl.IssueDir(is.Title)):
		return "partial, will resume"
	default:
		return "new"
	}
}

func problems(sum snag.Summary) []ui.Problem {
	var out []ui.Problem
	for _, o := range sum.Outcomes {
		if o.Status != snag.StatusIncomplete && o.Status != snag.StatusFailed {
			continue
		}

		reason := "unknown"
		if o.Err != nil {
			reason = o.Err.Error()
		}

		out = append(out, ui.Problem{
			Title:  o.Issue.Title,
			Status: string(o.Status),
			Reason: reason,
		})
	}

	return out
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
