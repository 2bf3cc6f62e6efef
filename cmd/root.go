package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/snag"
	"github.com/brogergvhs/comicsnag/internal/ui"
	"github.com/brogergvhs/comicsnag/internal/util"
)

const (
	exitError        = 1
	exitConnectivity = 2
	exitInterrupted  = 130
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagRoot         string
	flagBaseURL      string
)

var rootCmd = &cobra.Command{
	Use:           "comicsnag",
	Short:         "Comic book downloader with CBZ output",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "local folder for archives and cache files")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "comic host base URL")
}

func Execute() {
	ctx, cancel := util.WithInterrupt(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err == nil {
		return
	}

	code := exitCode(err)
	if code != exitInterrupted {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ui.ErrAborted):
		return exitInterrupted
	case errors.Is(err, snag.ErrIncomplete), errors.Is(err, comics.ErrDiscoveryExhausted):
		// a single issue losing the host is not a failed search
		return exitError
	case comics.Fatal(err):
		return exitConnectivity
	default:
		return exitError
	}
}
