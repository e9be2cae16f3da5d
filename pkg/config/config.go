package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel          string `yaml:"log_level" default:"info"`
	RecordingsDir     string `yaml:"recordings_dir"` // empty = <home>/GSD_Recordings
	DeviceID          string `yaml:"device_id"`      // empty = random per run
	SampleWindowSize  int    `yaml:"sample_window_size" default:"2"`
	RateWindowSize    int    `yaml:"rate_window_size" default:"3"`
	StatsQueueSize    uint32 `yaml:"stats_queue_size" default:"16"`
	SampleQueueSize   int    `yaml:"sample_queue_size" default:"1024"`
	MaxNameProbes     int    `yaml:"max_name_probes" default:"1000"`
	SimulateRateHz    int    `yaml:"simulate_rate_hz" default:"100"`
	WritePreprocessed bool   `yaml:"write_preprocessed" default:"false"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SampleWindowSize <= 0 {
		return fmt.Errorf("sample_window_size must be > 0, got %d", c.SampleWindowSize)
	}
	if c.RateWindowSize <= 0 {
		return fmt.Errorf("rate_window_size must be > 0, got %d", c.RateWindowSize)
	}
	if c.SampleQueueSize <= 0 {
		return fmt.Errorf("sample_queue_size must be > 0, got %d", c.SampleQueueSize)
	}
	if c.MaxNameProbes <= 0 {
		return fmt.Errorf("max_name_probes must be > 0, got %d", c.MaxNameProbes)
	}
	if c.SimulateRateHz <= 0 {
		return fmt.Errorf("simulate_rate_hz must be > 0, got %d", c.SimulateRateHz)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
