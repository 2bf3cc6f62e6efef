package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/config"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "List the series matching a search term",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}

		term, err := searchTerm(args)
		if err != nil {
			return err
		}

		found, err := a.catalog.FindSeries(cmd.Context(), term)
		if err != nil {
			return err
		}

		if len(found) == 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Was not able to find any titles for: %s\n", term)
			return nil
		}

		printSeries(cmd, term, found)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
