package dockerrun

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
)

// UsageErrorExitCode is the agent's exit status after it has already
// printed a usage or parse error.
const UsageErrorExitCode = 2

// Analysis is the two-way result of an analyze run: either a payload to
// continue with, or an early exit whose diagnostic the agent already
// printed.
type Analysis struct {
	payload  argsproto.Payload
	code     int
	earlyOut bool
}

// Continue wraps a decoded payload.
func Continue(p argsproto.Payload) Analysis {
	return Analysis{payload: p}
}

// EarlyExit records an already-reported exit with code.
func EarlyExit(code int) Analysis {
	return Analysis{code: code, earlyOut: true}
}

// Payload returns the payload when analysis succeeded.
func (a Analysis) Payload() (argsproto.Payload, bool) {
	return a.payload, !a.earlyOut
}

// EarlyExit returns the exit code when the agent stopped early.
func (a Analysis) EarlyExit() (int, bool) {
	return a.code, a.earlyOut
}

// Analyzer runs the agent with the analyze sentinel prepended to the
// user's arguments. The run has no mounts; the agent only parses its
// command line in this mode.
type Analyzer struct {
	Program string

	// Prefix precedes the sentinel flag; for docker it is the `run` command
	// line up to and including the agent command.
	Prefix []string

	Stderr io.Writer
	Logger *log.Logger
}

// NewAnalyzer prepares an analyze run of image through program.
func NewAnalyzer(program, image string, logger *log.Logger) *Analyzer {
	return &Analyzer{
		Program: program,
		Prefix:  []string{"run", "--rm", image, AgentCommand},
		Stderr:  os.Stderr,
		Logger:  logger,
	}
}

// Analyze runs the agent in analyze mode for args.
func (a *Analyzer) Analyze(ctx context.Context, args []string) (Analysis, error) {
	cmdArgs := make([]string, 0, len(a.Prefix)+1+len(args))
	cmdArgs = append(cmdArgs, a.Prefix...)
	cmdArgs = append(cmdArgs, argsproto.AnalyzeFlag)
	cmdArgs = append(cmdArgs, args...)

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, a.Program, cmdArgs...)
	cmd.Stdout = &stdout
	// The agent's diagnostics are legitimate output whatever the outcome.
	cmd.Stderr = a.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	runErr := cmd.Run()
	outcome, err := outcomeOf(runErr)
	if err != nil {
		return Analysis{}, &LaunchError{Program: a.Program, Args: cmdArgs, Err: err}
	}

	switch {
	case outcome.Kind == Success:
		payload, err := argsproto.Decode(stdout.Bytes())
		if err != nil {
			return Analysis{}, err
		}
		return Continue(payload), nil
	case outcome.Kind == FailedWithCode && outcome.Code == UsageErrorExitCode:
		return EarlyExit(outcome.Code), nil
	}

	if out := strings.TrimSpace(stdout.String()); out != "" && a.Logger != nil {
		a.Logger.Printf("The agent's standard output may contain diagnostics:\n%s", indentLines(out, "  "))
	}
	return Analysis{}, &AnalyzeError{Outcome: outcome}
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
