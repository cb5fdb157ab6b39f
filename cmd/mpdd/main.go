// Package main is the entry point for the mpdd daemon.
// mpdd is a headless music server that plays local files and internet
// streams and is controlled by any MPD client.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/austinkregel/local-media/mpdd/internal/config"
)

var (
	configDir string
	verbose   bool
	testMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "mpdd",
	Short: "Music server speaking the MPD protocol",
	Long: `mpdd plays local music files and internet streams and can be controlled
by any MPD client. Running it without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: ~/.config/mpdd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "use the silent audio output and skip the desktop media session")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration, creating it with defaults on first run
func loadConfig() (*config.Manager, error) {
	dir := configDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", "mpdd")
	}

	mgr := config.NewManager(dir)
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}
