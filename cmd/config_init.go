package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/comicsnag/internal/config"
)

var flagInitYes bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultPath, err := config.ConfigPathByLabel("Default")
		if err != nil {
			return err
		}

		if _, err := os.Stat(defaultPath); err == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration already exists at:")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  ", defaultPath)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Use `comicsnag config reset` to recreate it.")
			return nil
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration file will be saved at:")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  ", defaultPath)
		_, _ = fmt.Fprintln(cmd.OutOrStdout())

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Default configuration:")
		config.DefaultConfig().Print(cmd.OutOrStdout())
		_, _ = fmt.Fprintln(cmd.OutOrStdout())

		if !flagInitYes && !confirm(fmt.Sprintf("Create Default config at %s? [y/N]: ", defaultPath)) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}

		if _, err := config.CreateConfig("Default"); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		if err := config.SwitchConfig("Default"); err != nil {
			return fmt.Errorf("failed to set active config: %w", err)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Config created at:", defaultPath)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "This config is now active (label: Default).")

		return nil
	},
}

func confirm(question string) bool {
	fmt.Print(question)

	reader := bufio.NewReader(os.Stdin)
	resp, _ := reader.ReadString('\n')
	resp = strings.TrimSpace(strings.ToLower(resp))

	return resp == "y" || resp == "yes"
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagInitYes, "yes", "y", false, "do not ask for confirmation")
	configCmd.AddCommand(configInitCmd)
}
