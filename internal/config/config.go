package config

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/dshills/instrument/internal/event"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSTRUMENT_"

// Log output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the full host configuration.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log" envPrefix:"LOG_"`
	Bus       BusConfig       `toml:"bus" yaml:"bus" envPrefix:"BUS_"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Sink      SinkConfig      `toml:"sink" yaml:"sink" envPrefix:"SINK_"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level" env:"LEVEL"`
	// Format is auto, text or json. Auto picks text on a terminal.
	Format string `toml:"format" yaml:"format" env:"FORMAT"`
	// File, when set, sends logs to a rotating file instead of stderr.
	File       string `toml:"file" yaml:"file" env:"FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `toml:"compress" yaml:"compress" env:"COMPRESS"`
}

// BusConfig controls the instrumentation bus and the built-in sinks.
type BusConfig struct {
	// FailurePolicy is isolate, propagate or aggregate.
	FailurePolicy string `toml:"failure_policy" yaml:"failure_policy" env:"FAILURE_POLICY"`
	// RecorderCapacity bounds the in-memory recorder. Zero disables it.
	RecorderCapacity int `toml:"recorder_capacity" yaml:"recorder_capacity" env:"RECORDER_CAPACITY"`
	// Namespaces the built-in sinks are attached to.
	Namespaces []string `toml:"namespaces" yaml:"namespaces" env:"NAMESPACES" envSeparator:","`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled" env:"ENABLED"`
	Endpoint    string `toml:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `toml:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
}

// SinkConfig controls file sinks.
type SinkConfig struct {
	// EventsFile, when set, receives one JSON line per notification.
	EventsFile string `toml:"events_file" yaml:"events_file" env:"EVENTS_FILE"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     FormatAuto,
			MaxSizeMB:  50,
			MaxBackups: 10,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Bus: BusConfig{
			FailurePolicy:    event.PolicyIsolate.String(),
			RecorderCapacity: 256,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "instrument",
		},
	}
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// FailurePolicy returns the parsed failure policy.
func (c *Config) FailurePolicy() event.FailurePolicy {
	p, _ := event.ParseFailurePolicy(c.Bus.FailurePolicy)
	return p
}

// Namespaces returns the configured namespaces as bus namespaces.
func (c *Config) Namespaces() []event.Namespace {
	out := make([]event.Namespace, 0, len(c.Bus.Namespaces))
	for _, ns := range c.Bus.Namespaces {
		out = append(out, event.Namespace(strings.TrimSpace(ns)))
	}
	return out
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, msg string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: msg})
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "", FormatAuto, FormatText, FormatJSON:
	default:
		invalid("log.format", c.Log.Format, "must be auto, text or json")
	}
	if c.Log.MaxSizeMB < 0 {
		invalid("log.max_size_mb", c.Log.MaxSizeMB, "must not be negative")
	}

	if _, err := event.ParseFailurePolicy(c.Bus.FailurePolicy); err != nil {
		invalid("bus.failure_policy", c.Bus.FailurePolicy, "must be isolate, propagate or aggregate")
	}
	if c.Bus.RecorderCapacity < 0 {
		invalid("bus.recorder_capacity", c.Bus.RecorderCapacity, "must not be negative")
	}
	for _, ns := range c.Namespaces() {
		if err := ns.Validate(); err != nil {
			invalid("bus.namespaces", ns, err.Error())
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		invalid("telemetry.endpoint", c.Telemetry.Endpoint, "required when telemetry is enabled")
	}

	return errors.Join(errs...)
}
