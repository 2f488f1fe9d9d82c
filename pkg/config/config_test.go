package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "fzone", cfg.NamePrefix)
	assert.Equal(t, "AE30", cfg.ServiceUUID)
	assert.Equal(t, "AE01", cfg.WriteUUID)
	assert.Equal(t, "AE02", cfg.NotifyUUID)
	assert.Equal(t, "55AA0600080D170b061718030276", cfg.KeepAliveCommand)
	assert.Equal(t, 180, cfg.MaxWriteSize)
	assert.Equal(t, 15*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, time.Second, cfg.KeepAlivePeriod)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: logrus.DebugLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: logrus.WarnLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.logLevel, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults are valid", func(*Config) {}, true},
		{"json format is valid", func(c *Config) { c.OutputFormat = "json" }, true},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }, false},
		{"empty service", func(c *Config) { c.ServiceUUID = "" }, false},
		{"empty keep-alive", func(c *Config) { c.KeepAliveCommand = "" }, false},
		{"write size leaves no room for a frame header", func(c *Config) { c.MaxWriteSize = 4 }, false},
		{"zero scan timeout", func(c *Config) { c.ScanTimeout = 0 }, false},
		{"zero settle delay is allowed", func(c *Config) { c.SettleDelay = 0 }, true},
		{"negative settle delay", func(c *Config) { c.SettleDelay = -time.Second }, false},
		{"zero history", func(c *Config) { c.NotificationHistory = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_ValidationReportsFirstInvalidSetting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceUUID = ""
	cfg.NotifyUUID = ""
	cfg.ConnectTimeout = 0
	cfg.ScanTimeout = 0

	for i := 0; i < 20; i++ {
		assert.EqualError(t, cfg.Validate(), "service_uuid must not be empty", "error MUST name the first invalid setting")
	}

	cfg.ServiceUUID = "AE30"
	cfg.NotifyUUID = "AE02"
	assert.EqualError(t, cfg.Validate(), "scan_timeout must be positive, got 0s")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fzlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
name_prefix: FZ
scan_timeout: 5s
keep_alive_period: 250ms
max_write_size: 20
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "FZ", cfg.NamePrefix)
	assert.Equal(t, 5*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.KeepAlivePeriod)
	assert.Equal(t, 20, cfg.MaxWriteSize)
	assert.Equal(t, "AE30", cfg.ServiceUUID, "unset keys MUST keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "explicit missing file MUST be an error")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("output_format: xml\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err, "invalid settings MUST be rejected")
}

func TestLoad_DefaultPathMayBeAbsent(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
