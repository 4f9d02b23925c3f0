package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/sandboxrt/wave/sandbox"
)

// defaultMemLen is the guest memory size used when neither --memlen nor a
// config file sets one.
const defaultMemLen = sandbox.MinMemLen

// Run is the entry point, isolated from global state like stdin/stdout/
// stderr and env so it can be exercised by tests without touching the
// real process, mirroring the teacher's cmd/agent-sandbox/run.go Run.
// Returns an exit code.
func Run(stdout, stderr io.Writer, args []string, env map[string]string) int {
	invoked := waveGuestExecutableName
	if len(args) > 0 {
		invoked = filepath.Base(args[0])
	}

	flags := flag.NewFlagSet(waveGuestExecutableName, flag.ContinueOnError)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagRoot := flags.String("root", "", "Authorized root directory for the guest")
	flagMemLen := flags.Uint64("memlen", 0, "Guest linear memory size in bytes")
	flagConfig := flags.StringP("config", "c", "", "Use specified config file (JSON/JSONC)")
	flagGuest := flags.String("guest", "", "Guest program to run (overrides argv[0] dispatch)")
	flagDebug := flags.Bool("debug", false, "Print wrapper call trace to stderr")

	if len(args) > 0 {
		if err := flags.Parse(args[1:]); err != nil {
			fprintError(stderr, err)

			return 1
		}
	}

	if *flagHelp {
		printUsage(stdout)

		return 0
	}

	guestName := resolveGuestName(invoked, *flagGuest)
	if guestName == "" {
		printUsage(stderr)

		return 1
	}

	cfg, err := LoadConfig(LoadConfigInput{
		ConfigPath: *flagConfig,
		RootFlag:   *flagRoot,
		MemLenFlag: *flagMemLen,
		GuestFlag:  guestName,
		GuestArgs:  flags.Args(),
	})
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	var debug *DebugLogger
	if *flagDebug {
		debug = NewDebugLogger(stderr)
		debug.Config(&cfg)
	}

	if err := runGuest(cfg.Guest, &cfg, stdout, debug); err != nil {
		fprintError(stderr, err)

		return 1
	}

	return 0
}

const usageHelp = `wave-guest - sandboxed guest program driver

Usage: wave-guest [flags] [guest args...]

When invoked as one of the known guest names (via argv[0] or a --guest
override), runs that guest program against a sandbox.Context scoped to
--root. Known guests: cat, cp, ls, stat, mkdir, symlink, renumber.

Flags:
  -h, --help             Show help
      --root <dir>       Authorized root directory for the guest
      --memlen <bytes>   Guest linear memory size (default 1MiB)
  -c, --config <file>    Use specified config file (JSON/JSONC)
      --guest <name>     Guest program to run (overrides argv[0] dispatch)
      --debug            Print wrapper call trace to stderr

Examples:
  wave-guest --root /tmp/sandboxed --guest cat
  wave-guest --root /tmp/sandboxed --guest cp src.txt dst.txt`

func printUsage(output io.Writer) {
	fprintln(output, usageHelp)
}

func fprintln(out io.Writer, a ...any) {
	_, _ = fmt.Fprintln(out, a...)
}

func fprintError(out io.Writer, err error) {
	_, _ = fmt.Fprintln(out, "wave-guest: error:", err)
}

// envToMap converts os.Environ()-style "K=V" entries to a map, matching
// the env-as-value convention the teacher's Run uses throughout.
func envToMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))

	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}

	return out
}
