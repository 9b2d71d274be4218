package dockerrun

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
)

// FallbackExitCode is reported when the child terminated without an exit
// code, for example because a signal killed it.
const FallbackExitCode = 1

// OutcomeKind classifies how a child process ended.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	FailedWithCode
	FailedNoCode
)

// Outcome is the result of waiting on a child process.
type Outcome struct {
	Kind OutcomeKind
	Code int
}

// ExitCode maps the outcome onto a program exit status.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Success:
		return 0
	case FailedWithCode:
		return o.Code
	default:
		return FallbackExitCode
	}
}

// outcomeOf classifies the error returned by Wait or Run. Errors that are
// not exit statuses are returned unchanged.
func outcomeOf(err error) (Outcome, error) {
	if err == nil {
		return Outcome{Kind: Success}, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return Outcome{}, err
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return Outcome{Kind: FailedWithCode, Code: code}, nil
	}
	return Outcome{Kind: FailedNoCode}, nil
}

// Invoker executes a built Invocation with the launcher's standard streams.
type Invoker struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// NewInvoker wires the invoker to the process's standard streams.
func NewInvoker(logger *log.Logger) *Invoker {
	return &Invoker{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// Run starts inv and blocks until it exits.
func (i *Invoker) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	return i.RunDetached(ctx, inv, nil)
}

// RunDetached starts inv without waiting, performs sideAction while the
// child keeps running, then blocks until the child exits. A failing side
// action is logged and does not affect the outcome. A nil sideAction makes
// this equivalent to Run.
func (i *Invoker) RunDetached(ctx context.Context, inv Invocation, sideAction func(context.Context) error) (Outcome, error) {
	args := inv.CommandLine()
	cmd := exec.CommandContext(ctx, inv.Program, args...)
	cmd.Stdin = i.Stdin
	cmd.Stdout = i.Stdout
	cmd.Stderr = i.Stderr

	// Interrupts reach the child directly through the terminal's process
	// group; the launcher stays alive to collect its exit status.
	restore := ignoreInterrupts()
	defer restore()

	if err := cmd.Start(); err != nil {
		return Outcome{}, &LaunchError{Program: inv.Program, Args: args, Err: err}
	}

	if sideAction != nil {
		if err := sideAction(ctx); err != nil {
			i.logf("Warning: %v", err)
		}
	}

	outcome, err := outcomeOf(cmd.Wait())
	if err != nil {
		return Outcome{}, err
	}
	switch outcome.Kind {
	case FailedWithCode:
		i.logf("error: the %s command signaled failure (exit code %d)", inv.Program, outcome.Code)
	case FailedNoCode:
		i.logf("error: the %s command exited unexpectedly", inv.Program)
	}
	return outcome, nil
}

func (i *Invoker) logf(format string, args ...any) {
	if i.Logger != nil {
		i.Logger.Printf(format, args...)
	}
}

func ignoreInterrupts() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
