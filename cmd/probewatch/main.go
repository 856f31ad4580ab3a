// Probewatch is a Wi-Fi sensor daemon with two modes: it either scans the
// radio environment and records the access points it hears, or joins a
// network and serves that record over HTTP. A button toggles between them.
//
// Usage:
//
//	probewatch [command] [flags]
//
// See 'probewatch --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/probewatch/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "probewatch",
	Short: "Wi-Fi scan / serve sensor daemon",
	Long: `Probewatch runs on a small networked device with a Wi-Fi radio.

In scan mode it passively scans and records every access point it hears.
In connected mode it joins the configured network and serves the recorded
table over HTTP, announcing itself over mDNS. A trigger (SIGUSR1, a key
press or the dashboard) toggles between the two.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/probewatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}
