package dockerrun

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeFakeCLI installs an executable shell script standing in for the
// container CLI and returns its path.
func writeFakeCLI(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "docker")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake CLI: %v", err)
	}
	return path
}

func waitABit() {
	time.Sleep(10 * time.Millisecond)
}
