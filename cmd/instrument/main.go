// Package main runs Lua scripts against an instrumentation bus with the
// configured sinks attached, then reports what was recorded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/instrument/internal/config"
	"github.com/dshills/instrument/internal/logging"
	"github.com/dshills/instrument/internal/telemetry"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options are the parsed command-line flags.
type options struct {
	ConfigPath string
	Scripts    []string
	LogLevel   string
	Watch      bool
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	logger, closeLog, err := logging.Setup(logConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Error("telemetry setup failed", slog.Any("error", err))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		return 1
	}
	defer a.Close()

	if err := a.runScripts(ctx, opts.Scripts); err != nil {
		return 1
	}

	if opts.Watch {
		if err := a.watch(ctx, opts.ConfigPath); err != nil {
			logger.Error("config watch failed", slog.Any("error", err))
			return 1
		}
	}

	a.report(os.Stdout)
	return 0
}

func parseFlags(args []string) (options, error) {
	var opts options
	var showVersion bool
	scripts := stringList{}

	fs := flag.NewFlagSet("instrument", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (TOML or YAML)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.Var(&scripts, "script", "Lua script to run (repeatable)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	fs.BoolVar(&opts.Watch, "watch", false, "Keep running and reload the config file on change")
	fs.BoolVar(&showVersion, "version", false, "Show version information")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "instrument - run Lua scripts against an instrumentation bus\n\n")
		fmt.Fprintf(fs.Output(), "Usage: instrument [options] [scripts...]\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if showVersion {
		fmt.Printf("instrument %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return opts, flag.ErrHelp
	}

	// Remaining arguments are scripts too.
	opts.Scripts = append(scripts, fs.Args()...)

	if opts.Watch && opts.ConfigPath == "" {
		return opts, errors.New("-watch requires -config")
	}
	return opts, nil
}

func logConfig(cfg *config.Config) *logging.Config {
	return &logging.Config{
		Level:      cfg.LogLevel(),
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
}
