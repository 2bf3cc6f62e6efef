package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/catalog"
	"github.com/brogergvhs/comicsnag/internal/config"
	"github.com/brogergvhs/comicsnag/internal/ui"
)

var flagInfoSeries int

var infoCmd = &cobra.Command{
	Use:   "info [term]",
	Short: "Show genres, synopsis and issues of a series",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}

		series, ok, err := a.pickSeries(cmd.Context(), cmd, args, flagInfoSeries)
		if err != nil || !ok {
			return err
		}

		d, err := a.catalog.Details(cmd.Context(), series)
		if err != nil {
			return err
		}

		ui.RenderSeries(cmd.OutOrStdout(), seriesInfo(d), ui.Width())
		return nil
	},
}

func seriesInfo(d catalog.Detail) ui.SeriesInfo {
	titles := make([]string, len(d.Issues))
	for i, is := range d.Issues {
		titles[i] = is.Title
	}

	return ui.SeriesInfo{
		Title:    d.Series.Title,
		Genres:   d.Genres,
		Synopsis: d.Synopsis,
		Issues:   titles,
	}
}

func init() {
	infoCmd.Flags().IntVar(&flagInfoSeries, "series", 0, "pick the N-th search result (1-based)")
	rootCmd.AddCommand(infoCmd)
}
