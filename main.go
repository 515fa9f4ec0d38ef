// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"olafx/cmd"
	applog "olafx/internal/log"
	"olafx/pkg/build"
)

// main initializes build information and hands over to the command line.
// Each command loads the configuration, wires the engine to its host and
// observers, and tears everything down when it returns or the process is
// interrupted.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
