package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
	"github.com/WorldWideTelescope/wwt-aligner/internal/configstore"
)

// fakeDocker is a scripted container CLI. In analyze mode it prints payload
// and exits with analyzeCode; otherwise it records its arguments, one per
// line, to logPath and exits with runCode.
type fakeDocker struct {
	path    string
	logPath string
}

func newFakeDocker(t *testing.T, payload any, analyzeCode, runCode int) fakeDocker {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI scripts require a POSIX shell")
	}
	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "payload.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(payloadPath, data, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	fd := fakeDocker{
		path:    filepath.Join(dir, "docker"),
		logPath: filepath.Join(dir, "run.log"),
	}
	script := fmt.Sprintf(`#!/bin/sh
for arg in "$@"; do
  if [ "$arg" = "%s" ]; then
    cat "%s"
    exit %d
  fi
done
printf '%%s\n' "$@" > "%s"
exit %d
`, argsproto.AnalyzeFlag, payloadPath, analyzeCode, fd.logPath, runCode)
	if err := os.WriteFile(fd.path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake docker: %v", err)
	}
	return fd
}

// recordedArgs returns the real invocation's arguments, or nil when the
// real invocation never ran.
func (fd fakeDocker) recordedArgs(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(fd.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// isolateEnvironment points configuration at an empty directory and turns
// off every environment toggle the launcher reads.
func isolateEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv(configstore.HomeEnv, t.TempDir())
	for _, key := range []string{envImage, envDocker, envVerbose, "WWT_ALIGNER_NO_BROWSER", "WWT_ALIGNER_OTEL_TRACES", "WWT_ALIGNER_OTEL_METRICS"} {
		t.Setenv(key, "")
	}

	prevTerminal := isTerminal
	prevDelay := browserDelay
	prevBrowser := openBrowser
	isTerminal = func() bool { return false }
	browserDelay = 0
	openBrowser = func(string) error { return nil }
	t.Cleanup(func() {
		isTerminal = prevTerminal
		browserDelay = prevDelay
		openBrowser = prevBrowser
	})
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func payloadOf(pieces []argsproto.Piece, ports ...argsproto.PublishedPort) argsproto.Payload {
	if pieces == nil {
		pieces = []argsproto.Piece{}
	}
	if ports == nil {
		ports = []argsproto.PublishedPort{}
	}
	return argsproto.Payload{Version: argsproto.SupportedVersion, Pieces: pieces, PublishedPorts: ports}
}
