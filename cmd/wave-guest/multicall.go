package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sandboxrt/wave/sandbox"
)

// waveGuestExecutableName is the canonical name of this binary, used to
// tell "normal" CLI usage (argv[0] == "wave-guest") apart from multicall
// dispatch, grounded on the teacher's cmd/agent-sandbox/multicall.go
// argv[0]-based routing — generalized here to select one of the example
// guest programs (SPEC_FULL.md §4.5.1) instead of one of the teacher's
// command wrappers.
const waveGuestExecutableName = "wave-guest"

// resolveGuestName picks which guest program to run: an explicit --guest
// flag wins, then argv[0]'s base name if it is a registered guest (the
// multicall case); otherwise it returns the empty string.
func resolveGuestName(invokedAs, guestFlag string) string {
	if guestFlag != "" {
		return guestFlag
	}

	base := filepath.Base(invokedAs)
	if _, ok := guestPrograms[base]; ok {
		return base
	}

	return ""
}

// runGuest looks up and runs the guest program against a fresh Context
// scoped to the configured root and memory size, tearing it down
// afterward regardless of outcome (spec.md §5: Destroy releases every
// live seal).
func runGuest(name string, cfg *Config, stdout io.Writer, debug *DebugLogger) error {
	fn, ok := guestPrograms[name]
	if !ok {
		return fmt.Errorf("%s: unknown guest %q (known: %s)", waveGuestExecutableName, name, knownGuestNames())
	}

	ctx, err := sandbox.New(cfg.MemLen, cfg.Root)
	if err != nil {
		return fmt.Errorf("constructing sandbox context: %w", err)
	}

	defer func() {
		_ = ctx.Destroy()
	}()

	return fn(ctx, cfg.GuestArgs, stdout, debug)
}

func knownGuestNames() string {
	names := make([]string, 0, len(guestPrograms))
	for name := range guestPrograms {
		names = append(names, name)
	}

	return strings.Join(names, ", ")
}
