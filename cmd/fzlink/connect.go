package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/session"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <device-id>",
	Short: "Connect to an fzone device and keep the link alive",
	Long: `Scans until the device is discovered, connects, subscribes to its
notifications and keeps the link alive until Ctrl+C (or --hold elapses).

State transitions and notifications are printed as they happen.

Examples:
  # Keep a link open until Ctrl+C
  fzlink connect AA:BB:CC:DD:EE:01

  # Send a command once ready, then hold the link for 10 seconds
  fzlink connect AA:BB:CC:DD:EE:01 --send 55AA0600080D170b061718030276 --hold 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var (
	connectScan time.Duration
	connectSend []string
	connectHold time.Duration
	connectRead bool
)

func init() {
	connectCmd.Flags().DurationVar(&connectScan, "scan", 0, "How long to scan for the device (default from config, 15s)")
	connectCmd.Flags().StringArrayVar(&connectSend, "send", nil, "Command to send once the link is ready (repeatable)")
	connectCmd.Flags().DurationVar(&connectHold, "hold", 0, "Keep the link open this long; 0 waits for Ctrl+C")
	connectCmd.Flags().BoolVar(&connectRead, "read", false, "Read the notify characteristic once the link is ready")
}

// statePrinter renders session events for the terminal
type statePrinter struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func (p *statePrinter) state(id string, from, to session.State, _ error) {
	c := color.New(color.FgYellow)
	switch to {
	case session.StateReady:
		c = color.New(color.FgGreen, color.Bold)
	case session.StateFailed:
		c = color.New(color.FgRed, color.Bold)
	case session.StateClosed:
		c = color.New(color.FgCyan)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: %s -> %s\n", id, from, c.Sprint(to))
}

func (p *statePrinter) error(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.err, "%s: %s\n", id, color.RedString("%s", FormatUserError(err)))
}

func (p *statePrinter) notification(id string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: <- %s\n", id, strings.ToUpper(hex.EncodeToString(value)))
}

func runConnect(cmd *cobra.Command, args []string) error {
	id := args[0]

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if connectScan > 0 {
		cfg.ScanTimeout = connectScan
	}

	cmd.SilenceUsage = true

	transport, closeTransport, err := transportFactory(logger, false)
	if err != nil {
		return fmt.Errorf("failed to open BLE transport: %w", err)
	}
	defer closeTransport()

	out := cmd.OutOrStdout()
	ctx, stop := signalContext(cmd.Context(), out, "disconnecting")
	defer stop()

	printer := &statePrinter{out: out, err: cmd.ErrOrStderr()}
	progress := NewProgressPrinter(out, "Looking for "+id, "Scanning", "Processing results")

	m := session.NewManager(transport, cfg, logger,
		session.WithStateHook(printer.state),
		session.WithErrorHook(printer.error),
		session.WithNotificationHandler(printer.notification),
		session.WithScanProgress(progress.Callback()),
	)
	defer m.Close()

	scanCtx, cancelScan := context.WithCancel(ctx)
	progress.Start()
	_, err = m.StartScan(scanCtx, func(s *session.Session) {
		if strings.EqualFold(s.ID(), id) {
			cancelScan()
		}
	})
	cancelScan()
	progress.Stop()
	if err != nil {
		return err
	}

	sess, ok := findSession(m, id)
	if !ok {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &device.NotFoundError{Resource: "device", UUIDs: []string{id}}
	}

	if err := m.Connect(ctx, sess.ID()); err != nil {
		return err
	}
	if err := sess.WaitReady(ctx); err != nil {
		return err
	}

	for _, command := range connectSend {
		if err := sess.Send(ctx, command); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: sent %d bytes\n", sess.ID(), len(command))
	}

	if connectRead {
		value, err := sess.ReadValue(ctx)
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		fmt.Fprintf(out, "%s: = %s\n", sess.ID(), strings.ToUpper(hex.EncodeToString(value)))
	}

	var holdC <-chan time.Time
	if connectHold > 0 {
		t := time.NewTimer(connectHold)
		defer t.Stop()
		holdC = t.C
	}

	select {
	case <-ctx.Done():
	case <-holdC:
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			return err
		}
	}

	return m.Disconnect(sess.ID())
}
