package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/catalog"
	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/source"
	"github.com/brogergvhs/comicsnag/internal/ui"
	"github.com/brogergvhs/comicsnag/internal/util"
)

// app is what every network command needs, built from the merged config.
type app struct {
	cfg     *config.Config
	used    string
	log     *ui.Logger
	client  *http.Client
	src     *source.HTTPSource
	catalog *catalog.Catalog
}

func newApp(opts config.Options) (*app, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Debug = opts.Debug || flagDebug
	if opts.Root == "" {
		opts.Root = flagRoot
	}
	if opts.BaseURL == "" {
		opts.BaseURL = flagBaseURL
	}

	cfg, used, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if used != "" {
		logSvc.Debugf("Config file: %s\n", used)
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          cfg.Timeout,
		UserAgent:        util.PickUserAgent(cfg.UserAgent),
		Cookie:           cfg.Cookie,
		CookieFile:       cfg.CookieFile,
		CloudflareBypass: cfg.CloudflareBypass,
		DebugLogger:      logSvc,
	})
	if err != nil {
		return nil, err
	}

	src := source.NewHTTPSource(client, source.Options{
		Attempts: cfg.Retries,
		Backoff:  cfg.RetryBackoff,
		Logger:   logSvc,
	})

	return &app{
		cfg:     cfg,
		used:    used,
		log:     logSvc,
		client:  client,
		src:     src,
		catalog: catalog.New(src, cfg.SearchURL(), cfg.Selectors),
	}, nil
}

func searchTerm(args []string) (string, error) {
	if term := strings.TrimSpace(strings.Join(args, " ")); term != "" {
		return term, nil
	}

	if !ui.Interactive() {
		return "", fmt.Errorf("missing search term")
	}

	return ui.AskTerm()
}

// pickSeries resolves the user's series: the 1-based --series index, the only
// match, or an interactive choice. ok is false when nothing matched.
func (a *app) pickSeries(ctx context.Context, cmd *cobra.Command, args []string, index int) (comics.Series, bool, error) {
	term, err := searchTerm(args)
	if err != nil {
		return comics.Series{}, false, err
	}

	found, err := a.catalog.FindSeries(ctx, term)
	if err != nil {
		return comics.Series{}, false, err
	}

	out := cmd.OutOrStdout()
	if len(found) == 0 {
		_, _ = fmt.Fprintf(out, "Was not able to find any titles for: %s\n", term)
		return comics.Series{}, false, nil
	}

	switch {
	case index > 0:
		if index > len(found) {
			return comics.Series{}, false, fmt.Errorf("--series %d out of range 1-%d", index, len(found))
		}
		return found[index-1], true, nil
	case len(found) == 1:
		return found[0], true, nil
	case !ui.Interactive():
		printSeries(cmd, term, found)
		return comics.Series{}, false, fmt.Errorf("%d titles match %q, pass --series", len(found), term)
	}

	titles := make([]string, len(found))
	for i, s := range found {
		titles[i] = s.Title
	}

	_, _ = fmt.Fprintf(out, "Found %d titles matching %s\n", len(found), term)
	idx, err := ui.PickIndex("Which one would you like to get?", titles)
	if err != nil {
		return comics.Series{}, false, err
	}

	return found[idx], true, nil
}

func printSeries(cmd *cobra.Command, term string, found []comics.Series) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Found %d titles matching %s\n", len(found), term)
	for i, s := range found {
		_, _ = fmt.Fprintf(out, " [%d] %s\n", i+1, s.Title)
	}
}

func ensureRoot(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("cannot create root folder: %w", err)
	}
	return nil
}
