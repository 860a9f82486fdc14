package main

import (
	"fmt"
	"os"

	"github.com/forgebuild/forge/internal/forgeerr"
	"github.com/forgebuild/forge/internal/telemetry"
)

// version is stamped at release build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cleanup := telemetry.Init(version)
	defer cleanup()

	if err := Execute(); err != nil {
		telemetry.Report(err)
		fmt.Fprintf(os.Stderr, "forge: %s\n", err)
		if kind, ok := forgeerr.KindOf(err); ok {
			return kind.ExitCode()
		}
		return 1
	}
	return 0
}
