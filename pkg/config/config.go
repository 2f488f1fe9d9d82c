package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the home directory when no explicit config file is given
const DefaultFileName = ".fzlink.yaml"

// Config holds application configuration
type Config struct {
	LogLevel     logrus.Level `json:"log_level" yaml:"log_level"`
	OutputFormat string       `json:"output_format" yaml:"output_format" default:"table"`

	// Peripheral profile
	NamePrefix       string `json:"name_prefix" yaml:"name_prefix" default:"fzone"`
	ServiceUUID      string `json:"service_uuid" yaml:"service_uuid" default:"AE30"`
	WriteUUID        string `json:"write_uuid" yaml:"write_uuid" default:"AE01"`
	NotifyUUID       string `json:"notify_uuid" yaml:"notify_uuid" default:"AE02"`
	KeepAliveCommand string `json:"keep_alive_command" yaml:"keep_alive_command" default:"55AA0600080D170b061718030276"`
	MaxWriteSize     int    `json:"max_write_size" yaml:"max_write_size" default:"180"`

	// Timing
	ScanTimeout     time.Duration `json:"scan_timeout" yaml:"scan_timeout" default:"15s"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" default:"15s"`
	SettleDelay     time.Duration `json:"settle_delay" yaml:"settle_delay" default:"1s"`
	KeepAlivePeriod time.Duration `json:"keep_alive_period" yaml:"keep_alive_period" default:"1s"`

	// Inbound buffering
	ReadBufferSize      int `json:"read_buffer_size" yaml:"read_buffer_size" default:"4096"`
	NotificationHistory int `json:"notification_history" yaml:"notification_history" default:"64"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.LogLevel = logrus.WarnLevel
	return cfg
}

// Load reads path over the defaults. An empty path means ~/.fzlink.yaml,
// which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		home, err := homedir.Dir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, DefaultFileName)
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config path %q: %w", path, err)
		}
		path = expanded
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch strings.ToLower(c.OutputFormat) {
	case "table", "json":
	default:
		return fmt.Errorf("unsupported output format %q (want table or json)", c.OutputFormat)
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"service_uuid", c.ServiceUUID},
		{"write_uuid", c.WriteUUID},
		{"notify_uuid", c.NotifyUUID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s must not be empty", f.name)
		}
	}

	if c.KeepAliveCommand == "" {
		return errors.New("keep_alive_command must not be empty")
	}
	if c.MaxWriteSize <= 4 {
		return fmt.Errorf("max_write_size must be greater than 4, got %d", c.MaxWriteSize)
	}

	for _, f := range []struct {
		name  string
		value time.Duration
	}{
		{"scan_timeout", c.ScanTimeout},
		{"connect_timeout", c.ConnectTimeout},
		{"keep_alive_period", c.KeepAlivePeriod},
	} {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", f.name, f.value)
		}
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative, got %v", c.SettleDelay)
	}
	if c.ReadBufferSize <= 0 || c.NotificationHistory <= 0 {
		return errors.New("read_buffer_size and notification_history must be positive")
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
