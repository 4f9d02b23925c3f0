// Command wave-guest drives the example guest programs from
// original_source/examples/ through the sandbox package's wrapper surface
// (C5), dispatched by argv[0] the same way the teacher's agent-sandbox
// binary dispatches wrapped commands.
package main

import (
	"os"
)

func main() {
	os.Exit(Run(os.Stdout, os.Stderr, os.Args, envToMap(os.Environ())))
}
