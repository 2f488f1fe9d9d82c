package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/testutils"
)

// Test device addresses for consistent mock device identification
const (
	TestDeviceAddress1 = "AA:BB:CC:DD:EE:01"
	TestDeviceAddress2 = "AA:BB:CC:DD:EE:02"
)

const fastConfig = `
scan_timeout: 40ms
connect_timeout: 100ms
settle_delay: 1ms
keep_alive_period: 10ms
`

// CommandTestSuite runs commands against a mocked transport.
// All cmd/fzlink test suites should embed it.
type CommandTestSuite struct {
	testutils.MockTransportSuite

	ConfigPath string
	// Duplicates records what the last command asked the transport for
	Duplicates bool

	originalFactory func(*logrus.Logger, bool) (device.Transport, func(), error)
}

func (s *CommandTestSuite) SetupTest() {
	s.MockTransportSuite.SetupTest()

	s.ConfigPath = filepath.Join(s.T().TempDir(), "fzlink.yaml")
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(fastConfig), 0o600))

	s.originalFactory = transportFactory
	s.Duplicates = false
	transportFactory = func(_ *logrus.Logger, allowDuplicates bool) (device.Transport, func(), error) {
		s.Duplicates = allowDuplicates
		return s.Transport, func() {}, nil
	}

	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	transportFactory = s.originalFactory
	s.MockTransportSuite.TearDownTest()
}

// syncBuffer is written by hooks running on session goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ExecuteCommand runs rootCmd with args and the test config, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(syncBuffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append(args, "--config", s.ConfigPath))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
