package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/scanner"
	"github.com/srg/fzlink/session"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for fzone devices",
	Long: `Scan for Bluetooth Low Energy advertisers whose local name starts with
the configured prefix (case-insensitive, "fzone" by default) and list them
in discovery order.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanPrefix   string
	scanFormat   string
	scanWatch    bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 15s)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Device name prefix (default from config, fzone)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Print advertisements as they arrive, including signal strength changes")
}

type deviceRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	RSSI int    `json:"rssi"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "" && scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if scanDuration > 0 {
		cfg.ScanTimeout = scanDuration
	}
	if cmd.Flags().Changed("prefix") {
		cfg.NamePrefix = scanPrefix
	}
	if scanFormat != "" {
		cfg.OutputFormat = scanFormat
	}

	if scanWatch && cfg.OutputFormat == "json" {
		return fmt.Errorf("--watch only works with table output")
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	transport, closeTransport, err := transportFactory(logger, scanWatch)
	if err != nil {
		return fmt.Errorf("failed to open BLE transport: %w", err)
	}
	defer closeTransport()

	out := cmd.OutOrStdout()
	ctx, stop := signalContext(cmd.Context(), out, "cancelling scan")
	defer stop()

	// Live lines and the progress line would overwrite each other
	var progressCallback scanner.ProgressCallback
	if !scanWatch {
		progress := NewCountdownProgressPrinter(out, "Scanning for fzone devices", "Scanning", cfg.ScanTimeout, "Processing results")
		progress.Start()
		defer progress.Stop()
		progressCallback = progress.Callback()
	}

	m := session.NewManager(transport, cfg, logger, session.WithScanProgress(progressCallback))
	defer m.Close()

	stopFollowing := func() {}
	if scanWatch {
		stopFollowing = followScan(out, m.ScanEvents())
	}

	result, scanErr := m.StartScan(ctx, nil)
	stopFollowing()

	if result != nil {
		if err := displayDevices(out, result, cfg.OutputFormat); err != nil {
			return err
		}
	}
	return scanErr
}

// followScan prints new devices and signal strength changes as they arrive.
// The returned function prints what is still queued and stops.
func followScan(out io.Writer, events <-chan scanner.DeviceEvent) func() {
	quit := make(chan struct{})
	done := make(chan struct{})
	last := make(map[string]int)

	show := func(ev scanner.DeviceEvent) {
		id := ev.Peripheral.ID()
		rssi := ev.Advertisement.RSSI()
		prev, seen := last[id]
		last[id] = rssi

		switch {
		case ev.Type == scanner.EventNew:
			fmt.Fprintf(out, "%s %s %s %d dBm\n", color.GreenString("+"), ev.Peripheral.Name(), id, rssi)
		case seen && prev != rssi:
			fmt.Fprintf(out, "%s %s %s %d dBm\n", color.YellowString("~"), ev.Peripheral.Name(), id, rssi)
		}
	}

	go func() {
		defer close(done)
		for {
			select {
			case ev := <-events:
				show(ev)
			case <-quit:
				for {
					select {
					case ev := <-events:
						show(ev)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
	}
}

func displayDevices(w io.Writer, result *scanner.Result, format string) error {
	rows := make([]deviceRow, 0, result.Len())
	for _, d := range result.Devices() {
		rows = append(rows, deviceRow{ID: d.ID(), Name: d.Name(), RSSI: d.RSSI()})
	}

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	}
	return displayDevicesTable(w, result.Devices())
}

func displayDevicesTable(out io.Writer, devices []*device.Peripheral) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(out, "No fzone devices discovered")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	for _, dev := range devices {
		name := dev.Name()
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", name, dev.ID(), dev.RSSI())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\n%d device(s) found\n", len(devices))
	return err
}

// findSession looks id up case-insensitively among the tracked sessions
func findSession(m *session.Manager, id string) (*session.Session, bool) {
	if s, ok := m.Session(id); ok {
		return s, true
	}
	for _, s := range m.Sessions() {
		if strings.EqualFold(s.ID(), id) {
			return s, true
		}
	}
	return nil, false
}
