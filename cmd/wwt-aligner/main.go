package main

import (
	"errors"
	"os"

	"github.com/WorldWideTelescope/wwt-aligner/internal/runner"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	runner.SetVersion(version, commit, buildDate)
	if err := runner.Main(os.Args); err != nil {
		var exitErr *runner.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		runner.ReportError(os.Stderr, err)
		os.Exit(1)
	}
}
