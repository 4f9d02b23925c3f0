package main

import (
	"fmt"
	"io"
)

// DebugLogger provides structured debug output for guest startup. It is
// disabled by default (when output is nil) and outputs to stderr when
// enabled, matching the teacher's cmd/agent-sandbox/debug.go.
type DebugLogger struct {
	output io.Writer
}

// NewDebugLogger creates a new debug logger. If output is nil, the logger
// is disabled and all methods are no-ops.
func NewDebugLogger(output io.Writer) *DebugLogger {
	return &DebugLogger{output: output}
}

// Enabled returns true if debug logging is enabled.
func (d *DebugLogger) Enabled() bool {
	return d != nil && d.output != nil
}

// Section outputs a section header.
func (d *DebugLogger) Section(name string) {
	if !d.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(d.output, "\n=== %s ===\n", name)
}

// Logf outputs a formatted debug message.
func (d *DebugLogger) Logf(format string, args ...any) {
	if !d.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(d.output, format+"\n", args...)
}

// Config outputs the resolved guest configuration.
func (d *DebugLogger) Config(cfg *Config) {
	if !d.Enabled() {
		return
	}

	d.Section("Config")
	d.Logf("  root: %s", cfg.Root)
	d.Logf("  memlen: %d", cfg.MemLen)
	d.Logf("  guest: %s", cfg.Guest)

	if cfg.LoadedConfigFile != "" {
		d.Logf("  config file: %s", cfg.LoadedConfigFile)
	} else {
		d.Logf("  config file: (none, using flags)")
	}
}

// WrapperCall logs a single wrapper op and its result, letting a --debug run
// show the exact wrapper sequence a guest drove (spec.md §4.5 is silent on
// tracing, but every guest here is unverified per spec.md §1 Non-goals, so
// a debug trace is the only visibility into what it actually did).
func (d *DebugLogger) WrapperCall(op string, result int64) {
	if !d.Enabled() {
		return
	}

	_, _ = fmt.Fprintf(d.output, "  %-10s -> %d\n", op, result)
}
