package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/probewatch/internal/config"
	"github.com/muurk/probewatch/internal/discovery"
	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/service"
	"github.com/muurk/probewatch/internal/table"
	"github.com/muurk/probewatch/internal/trigger"
	"github.com/muurk/probewatch/internal/tui"
	"github.com/muurk/probewatch/internal/version"
)

// Run command flags
var (
	driverName  string
	triggerName string
	withTUI     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon",
	Long: `Run the probewatch daemon until SIGINT or SIGTERM.

The daemon starts in scan mode. Each trigger toggles between scan mode and
connected mode. With --driver sim no radio is needed: an in-memory network
stands in for the wireless stack and the scan backend.`,
	Example: `  # Run with the configured driver and SIGUSR1 as the button
  probewatch run
  kill -USR1 $(pidof probewatch)

  # Try it out without hardware, space bar as the button
  probewatch run --driver sim --trigger keyboard

  # Interactive dashboard, logs go to probewatch.log next to the config
  probewatch run --driver sim --tui`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&driverName, "driver", "", "Wireless driver and scan backend (sim, wpa)")
	runCmd.Flags().StringVar(&triggerName, "trigger", "", "Trigger source (signal, keyboard, tui)")
	runCmd.Flags().BoolVar(&withTUI, "tui", false, "Show the interactive dashboard")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if driverName != "" {
		cfg.Link.Driver = driverName
		cfg.Scan.Backend = driverName
	}
	if triggerName != "" {
		cfg.Trigger.Source = triggerName
	}
	if withTUI {
		cfg.Trigger.Source = config.TriggerTUI
		// The dashboard owns the terminal.
		if cfg.Indicator.LED == config.LEDTerminal {
			cfg.Indicator.LED = config.LEDNone
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Trigger.Source == config.TriggerTUI {
		logPath, err := logFilePath()
		if err != nil {
			return err
		}
		if err := logging.InitializeToFile(logLevel, "info", logPath); err != nil {
			return err
		}
	} else if err := logging.InitializeWithDefault(logLevel, "info"); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []service.Option{
		service.WithVersion(version.Version),
		service.WithQuit(stop),
	}
	var manual *trigger.Manual
	if cfg.Trigger.Source == config.TriggerTUI {
		manual = trigger.NewManual()
		opts = append(opts, service.WithTrigger(manual))
	}

	svc, err := service.Bootstrap(cfg, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if manual == nil {
		return svc.Run(ctx)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	tuiErr := tui.Run(ctx, svc, func() { manual.Fire() }, version.Version)
	stop()
	if err := <-runErr; err != nil {
		return err
	}
	return tuiErr
}

func logFilePath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, "probewatch.log"), nil
}

// Table command flags
var (
	tableFormat string
	tableSensor string
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the recorded access points",
	Long: `Print the observation table recorded in scan mode, strongest signal
first. The daemon does not need to be running.

With --sensor the table is fetched from a remote daemon in connected mode
instead of the local file.`,
	Example: `  probewatch table
  probewatch table --format json | jq '.[0]'
  probewatch table --sensor 192.168.1.40:8080`,
	RunE: runTable,
}

func init() {
	tableCmd.Flags().StringVar(&tableFormat, "format", "text", "Output format (text, json, yaml)")
	tableCmd.Flags().StringVar(&tableSensor, "sensor", "", "Fetch from a remote daemon (host:port or URL)")
}

func runTable(cmd *cobra.Command, args []string) error {
	if tableSensor != "" {
		entries, err := fetchRemoteTable(cmd.Context(), tableSensor)
		if err != nil {
			return err
		}
		return printTable(cmd.OutOrStdout(), entries, tableFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tbl := table.New(cfg.Table.Path)
	if err := tbl.Load(); err != nil {
		return err
	}
	return printTable(cmd.OutOrStdout(), tbl.Snapshot(), tableFormat)
}

func printTable(w io.Writer, entries []table.Entry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(entries)
	case "text":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No access points recorded yet.")
		fmt.Fprintln(w, "\nRun 'probewatch run' and stay in scan mode for a while.")
		return nil
	}

	fmt.Fprintf(w, "%-24s %-17s %4s %6s %6s  %s\n", "SSID", "BSSID", "CH", "RSSI", "SEEN", "LAST SEEN")
	for _, e := range entries {
		ssid := e.SSID
		if ssid == "" {
			ssid = "<hidden>"
		}
		fmt.Fprintf(w, "%-24.24s %-17s %4d %6d %6d  %s\n",
			ssid, e.BSSID, e.Channel, e.RSSI, e.Seen, e.LastSeen.Local().Format(time.DateTime))
	}
	fmt.Fprintf(w, "\n%d access point(s)\n", len(entries))
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

var (
	discoverTimeout time.Duration
	discoverStatus  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find probewatch sensors on the local network",
	Long: `Browse mDNS for probewatch web servers. Only sensors in connected mode
with web.advertise enabled can be found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Browsing for probewatch sensors (timeout: %s)...\n\n", discoverTimeout)

		sensors, err := discovery.Discover(cmd.Context(), discoverTimeout)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("discovery failed: %w", err)
		}
		if len(sensors) == 0 {
			fmt.Fprintln(out, "No sensors found.")
			return nil
		}
		for i, s := range sensors {
			fmt.Fprintf(out, "%d. %s\n", i+1, s.Instance)
			fmt.Fprintf(out, "   URL:     %s\n", s.BaseURL())
			if v := s.GetMetadata("version"); v != "" {
				fmt.Fprintf(out, "   Version: %s\n", v)
			}
			if discoverStatus {
				printSensorSummary(cmd.Context(), out, s.BaseURL())
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultBrowseTimeout, "How long to browse")
	discoverCmd.Flags().BoolVar(&discoverStatus, "status", false, "Query each sensor's status")
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "probewatch %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
}
