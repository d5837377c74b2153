package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/dshills/instrument/internal/config"
	"github.com/dshills/instrument/internal/event"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "x.toml", "-script", "a.lua", "-script", "b.lua", "-log-level", "debug", "c.lua"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.ConfigPath != "x.toml" || opts.LogLevel != "debug" {
		t.Errorf("opts = %+v", opts)
	}
	want := []string{"a.lua", "b.lua", "c.lua"}
	if strings.Join(opts.Scripts, ",") != strings.Join(want, ",") {
		t.Errorf("Scripts = %v, want %v", opts.Scripts, want)
	}
}

func TestParseFlags_WatchNeedsConfig(t *testing.T) {
	if _, err := parseFlags([]string{"-watch"}); err == nil {
		t.Error("expected error for -watch without -config")
	}
}

func TestParseFlags_Help(t *testing.T) {
	_, err := parseFlags([]string{"-h"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("error = %v, want flag.ErrHelp", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestApp_RunsScriptAndReports(t *testing.T) {
	dir := t.TempDir()
	eventsFile := filepath.Join(dir, "events.jsonl")

	cfg := config.Default()
	cfg.Bus.Namespaces = []string{"db.query"}
	cfg.Bus.RecorderCapacity = 8
	cfg.Sink.EventsFile = eventsFile

	a, err := newApp(cfg, testLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	scriptPath := filepath.Join(dir, "demo.lua")
	code := `
		instrument.time("db.query", "users", function() return 1 end)
		pcall(function()
			instrument.time("db.query", instrument.symbol("orders"), function() error("timeout") end)
		end)
	`
	if err := os.WriteFile(scriptPath, []byte(code), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := a.host.DoFile(context.Background(), scriptPath); err != nil {
		t.Fatalf("DoFile: %v", err)
	}

	var out bytes.Buffer
	a.report(&out)
	a.Close()

	report := out.String()
	for _, want := range []string{"db.query", "users", ":orders", "error: ", "notifications=2", "work_failures=1"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	data, err := os.ReadFile(eventsFile)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("events lines = %d, want 2", len(lines))
	}
	if got := gjson.Get(lines[0], "tag").String(); got != "users" {
		t.Errorf("first tag = %q, want users", got)
	}
	if !gjson.Get(lines[1], "error").Exists() {
		t.Errorf("second line has no error: %s", lines[1])
	}
}

func TestApp_RunScriptsLogsScriptPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.lua")
	bad := filepath.Join(dir, "bad.lua")
	never := filepath.Join(dir, "never.lua")
	if err := os.WriteFile(good, []byte(`local x = 1`), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := os.WriteFile(bad, []byte(`error("boom")`), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, err := newApp(config.Default(), logger)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if err := a.runScripts(context.Background(), []string{good, bad, never}); err == nil {
		t.Fatal("expected error from failing script")
	}

	var failed, ran []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		switch gjson.Get(line, "msg").String() {
		case "script failed":
			failed = append(failed, gjson.Get(line, "script").String())
		case "running script":
			ran = append(ran, gjson.Get(line, "script").String())
		}
	}
	if len(failed) != 1 || failed[0] != bad {
		t.Errorf("failed scripts = %v, want [%s]", failed, bad)
	}
	if strings.Join(ran, ",") != good+","+bad {
		t.Errorf("ran scripts = %v, want %s then %s", ran, good, bad)
	}
}

func TestApp_Apply(t *testing.T) {
	cfg := config.Default()
	a, err := newApp(cfg, testLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	next := config.Default()
	next.Bus.FailurePolicy = "aggregate"
	a.apply(next)

	if a.bus.FailurePolicy() != event.PolicyAggregate {
		t.Errorf("FailurePolicy = %v, want aggregate", a.bus.FailurePolicy())
	}
}
