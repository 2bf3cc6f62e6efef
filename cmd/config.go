package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config files for comicsnag",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			Root:         flagRoot,
			BaseURL:      flagBaseURL,
		})
		if err != nil {
			return err
		}

		if used == "" {
			used = "(no config, built-in defaults)"
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded config from:\n  %s\n\n", used)
		cfg.Print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
