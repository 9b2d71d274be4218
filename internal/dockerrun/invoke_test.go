package dockerrun

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestInvoker(logs *bytes.Buffer) *Invoker {
	return &Invoker{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
		Logger: log.New(logs, "", 0),
	}
}

func TestRunExitCodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		kind     OutcomeKind
		exitCode int
		logged   string
	}{
		{name: "success", body: "exit 0", kind: Success, exitCode: 0},
		{name: "nonzero code", body: "exit 3", kind: FailedWithCode, exitCode: 3, logged: "signaled failure (exit code 3)"},
		{name: "killed by signal", body: "kill -9 $$", kind: FailedNoCode, exitCode: FallbackExitCode, logged: "exited unexpectedly"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			inv := Invocation{Program: writeFakeCLI(t, tt.body), Image: "example/agent:latest"}
			outcome, err := newTestInvoker(&logs).Run(context.Background(), inv)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if outcome.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", outcome.Kind, tt.kind)
			}
			if got := outcome.ExitCode(); got != tt.exitCode {
				t.Fatalf("ExitCode() = %d, want %d", got, tt.exitCode)
			}
			if tt.logged == "" && logs.Len() != 0 {
				t.Fatalf("unexpected log output %q", logs.String())
			}
			if tt.logged != "" && !strings.Contains(logs.String(), tt.logged) {
				t.Fatalf("log %q does not contain %q", logs.String(), tt.logged)
			}
		})
	}
}

func TestRunPassesCommandLine(t *testing.T) {
	record := filepath.Join(t.TempDir(), "args")
	program := writeFakeCLI(t, `printf '%s\n' "$@" > "`+record+`"`)
	inv := Invocation{
		Program: program,
		Image:   "example/agent:latest",
		Args:    []string{AgentCommand, "go", "with space"},
	}

	var logs bytes.Buffer
	if _, err := newTestInvoker(&logs).Run(context.Background(), inv); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	got := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	want := inv.CommandLine()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("recorded %q, want %q", got, want)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	var logs bytes.Buffer
	inv := Invocation{Program: filepath.Join(t.TempDir(), "no-such-docker"), Image: "x"}
	_, err := newTestInvoker(&logs).Run(context.Background(), inv)
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected *LaunchError, got %v", err)
	}
	if launchErr.Program != inv.Program {
		t.Fatalf("launch error names %q", launchErr.Program)
	}
}

func TestRunDetachedPerformsSideActionWhileChildRuns(t *testing.T) {
	dir := t.TempDir()
	started := filepath.Join(dir, "started")
	release := filepath.Join(dir, "release")
	// The child stays alive until the side action creates the release file.
	body := `touch "` + started + `"
i=0
while [ ! -f "` + release + `" ]; do
  i=$((i+1))
  if [ $i -gt 500 ]; then exit 9; fi
  sleep 0.01
done
exit 4`
	inv := Invocation{Program: writeFakeCLI(t, body), Image: "x"}

	var (
		logs        bytes.Buffer
		sideCalled  bool
		childActive bool
	)
	side := func(context.Context) error {
		sideCalled = true
		for i := 0; i < 500; i++ {
			if _, err := os.Stat(started); err == nil {
				childActive = true
				break
			}
			waitABit()
		}
		return os.WriteFile(release, nil, 0o644)
	}

	outcome, err := newTestInvoker(&logs).RunDetached(context.Background(), inv, side)
	if err != nil {
		t.Fatalf("RunDetached: %v", err)
	}
	if !sideCalled || !childActive {
		t.Fatalf("side action must run while the child is alive (called=%v active=%v)", sideCalled, childActive)
	}
	if outcome.Kind != FailedWithCode || outcome.ExitCode() != 4 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestRunDetachedSideActionFailureIsWarning(t *testing.T) {
	var logs bytes.Buffer
	inv := Invocation{Program: writeFakeCLI(t, "exit 0"), Image: "x"}
	outcome, err := newTestInvoker(&logs).RunDetached(context.Background(), inv, func(context.Context) error {
		return errors.New("no browser available")
	})
	if err != nil {
		t.Fatalf("RunDetached: %v", err)
	}
	if outcome.Kind != Success {
		t.Fatalf("side action failure must not change the outcome: %+v", outcome)
	}
	if !strings.Contains(logs.String(), "Warning: no browser available") {
		t.Fatalf("expected warning, got %q", logs.String())
	}
}

func TestOutcomeExitCode(t *testing.T) {
	if got := (Outcome{Kind: Success, Code: 7}).ExitCode(); got != 0 {
		t.Fatalf("success maps to %d", got)
	}
	if got := (Outcome{Kind: FailedWithCode, Code: 7}).ExitCode(); got != 7 {
		t.Fatalf("FailedWithCode maps to %d", got)
	}
	if got := (Outcome{Kind: FailedNoCode}).ExitCode(); got != FallbackExitCode || got == 0 {
		t.Fatalf("FailedNoCode maps to %d", got)
	}
}
