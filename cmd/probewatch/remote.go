package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/probewatch/internal/client"
	"github.com/muurk/probewatch/internal/table"
	"github.com/muurk/probewatch/internal/web"
)

// Status command flags
var (
	statusSensor string
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running sensor",
	Long: `Query the status of a probewatch daemon in connected mode over its HTTP
API. Use 'probewatch discover' to find sensors on the local network.`,
	Example: `  probewatch status --sensor 192.168.1.40:8080
  probewatch status --sensor http://sensor.local:8080 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusSensor == "" {
			return fmt.Errorf("--sensor is required")
		}
		st, err := client.New(statusSensor).Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", client.ShortMessage(err), err)
		}
		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSensor, "sensor", "", "Sensor address (host:port or URL)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, st web.Status) {
	fmt.Fprintf(w, "Mode:       %s\n", st.Mode)
	fmt.Fprintf(w, "Link:       %s\n", st.Link)
	if st.SSID != "" {
		fmt.Fprintf(w, "SSID:       %s\n", st.SSID)
	}
	if st.Address != "" {
		fmt.Fprintf(w, "Address:    %s\n", st.Address)
	}
	fmt.Fprintf(w, "Reconnects: %d\n", st.Reconnects)
	fmt.Fprintf(w, "Entries:    %d\n", st.Entries)
	if !st.Time.IsZero() {
		fmt.Fprintf(w, "As of:      %s\n", st.Time.Local().Format(time.DateTime))
	}
}

func fetchRemoteTable(ctx context.Context, sensor string) ([]table.Entry, error) {
	entries, err := client.New(sensor).Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", client.ShortMessage(err), err)
	}
	return entries, nil
}

// printSensorSummary appends one status line for a discovered sensor.
func printSensorSummary(ctx context.Context, w io.Writer, baseURL string) {
	c := client.New(baseURL)
	c.MaxRetries = 1
	st, err := c.Status(ctx)
	if err != nil {
		fmt.Fprintf(w, "   Status:  %s\n", client.ShortMessage(err))
		return
	}
	fmt.Fprintf(w, "   Status:  %s, %d entries\n", st.Link, st.Entries)
}
