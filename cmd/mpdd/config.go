package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/mpdd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the configuration",
	Long:  `Print the effective configuration, including environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := config.Encode(mgr.Get())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", mgr.GetPath(), data)
		return nil
	},
}

var configAddDirCmd = &cobra.Command{
	Use:   "add-dir <path>",
	Short: "Add a media directory to the local library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editMediaDirs(cmd, args[0], (*config.Manager).AddMediaDir, "Added")
	},
}

var configRemoveDirCmd = &cobra.Command{
	Use:   "remove-dir <path>",
	Short: "Remove a media directory from the local library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editMediaDirs(cmd, args[0], (*config.Manager).RemoveMediaDir, "Removed")
	},
}

func editMediaDirs(cmd *cobra.Command, dir string, edit func(*config.Manager, string) error, verb string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	mgr, err := loadConfig()
	if err != nil {
		return err
	}
	if err := edit(mgr, abs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s. Send \"update\" from a client or restart mpdd to rescan.\n", verb, abs)
	return nil
}

func init() {
	configCmd.AddCommand(configAddDirCmd)
	configCmd.AddCommand(configRemoveDirCmd)
	rootCmd.AddCommand(configCmd)
}
