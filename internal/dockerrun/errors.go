package dockerrun

import (
	"fmt"
	"strings"
)

// LaunchError reports that the operating system could not start a
// container CLI process.
type LaunchError struct {
	Program string
	Args    []string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s %s: %v", e.Program, strings.Join(e.Args, " "), e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// AnalyzeError reports an analyze-mode run that ended other than with
// success or the reserved usage-error code.
type AnalyzeError struct {
	Outcome Outcome
}

func (e *AnalyzeError) Error() string {
	if e.Outcome.Kind == FailedNoCode {
		return "the agent terminated unexpectedly while analyzing the command line"
	}
	return fmt.Sprintf("the agent failed while analyzing the command line (exit code %d)", e.Outcome.Code)
}
