//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/WorldWideTelescope/wwt-aligner/internal/runner"
)

const (
	stubImage         = "wwt-aligner-e2e-stub:latest"
	imageBuildTimeout = 5 * time.Minute
	serveTimeout      = 30 * time.Second
)

// stubAgent speaks the args protocol for two commands: `copy <src> <dst>`
// and `serve <file> <host-port>`.
const stubAgent = `#!/bin/sh
if [ "$1" = "--x-analyze-args-mode" ]; then
  shift
  case "$1" in
    copy)
      printf '{"version":1,"pieces":[{"text":"copy"},{"text":"%s","path_pre_exists":true},{"text":"%s","path_created":true}]}' "$2" "$3"
      exit 0 ;;
    serve)
      printf '{"version":1,"pieces":[{"text":"serve"},{"text":"%s","path_pre_exists":true}],"published_ports":[{"host_port":%s,"container_port":8080}]}' "$2" "$3"
      exit 0 ;;
    *)
      echo "unknown command: $1" >&2
      exit 2 ;;
  esac
fi
while [ $# -gt 0 ]; do
  case "$1" in
    --x-host-path=*|--x-container-path=*) shift ;;
    *) break ;;
  esac
done
case "$1" in
  copy) exec cp "$2" "$3" ;;
  serve) exec httpd -f -p 8080 -h "$(dirname "$2")" ;;
esac
exit 3
`

const stubDockerfile = `FROM busybox:1.36
COPY wwt-aligner-agent /usr/local/bin/wwt-aligner-agent
RUN chmod 0755 /usr/local/bin/wwt-aligner-agent
`

func skipUnlessE2E(t *testing.T) {
	t.Helper()
	if !envTruthy(os.Getenv("WWT_ALIGNER_E2E")) {
		t.Skip("set WWT_ALIGNER_E2E=1 to run end-to-end tests")
	}
	if err := checkDockerAvailable(); err != nil {
		t.Skipf("skipping: docker not available: %v", err)
	}
}

func envTruthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func checkDockerAvailable() error {
	cmd := exec.Command("docker", "info")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

func ensureStubImage(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wwt-aligner-agent"), []byte(stubAgent), 0o755); err != nil {
		t.Fatalf("write stub agent: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(stubDockerfile), 0o644); err != nil {
		t.Fatalf("write Dockerfile: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), imageBuildTimeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", "build", "-t", stubImage, dir)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker build failed: %v\n%s", err, out.String())
	}
}

func isolateLauncher(t *testing.T) {
	t.Helper()
	t.Setenv("WWT_ALIGNER_HOME", t.TempDir())
	t.Setenv("WWT_ALIGNER_IMAGE", stubImage)
	t.Setenv("WWT_ALIGNER_NO_BROWSER", "1")
}

func TestLauncherCopiesThroughMounts(t *testing.T) {
	skipUnlessE2E(t)
	ensureStubImage(t)
	isolateLauncher(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "input.txt")
	dst := filepath.Join(dstDir, "output.txt")
	if err := os.WriteFile(src, []byte("hello aligner\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if err := runner.Main([]string{"wwt-aligner", "--no-tty", "copy", src, dst}); err != nil {
		t.Fatalf("launcher: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "hello aligner\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestLauncherPropagatesUsageExit(t *testing.T) {
	skipUnlessE2E(t)
	ensureStubImage(t)
	isolateLauncher(t)

	err := runner.Main([]string{"wwt-aligner", "--no-tty", "frobnicate"})
	var exitErr *runner.ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}

func TestLauncherServesPublishedPort(t *testing.T) {
	skipUnlessE2E(t)
	ensureStubImage(t)
	isolateLauncher(t)

	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	if err := os.WriteFile(page, []byte("<h1>aligned</h1>"), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	port := freePort(t)

	done := make(chan error, 1)
	go func() {
		done <- runner.Main([]string{"wwt-aligner", "serve", page, strconv.Itoa(port)})
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/index.html"
	var body string
	requireEventually(t, "served page", serveTimeout, func() error {
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %s", resp.Status)
		}
		body = string(data)
		return nil
	})
	if !strings.Contains(body, "aligned") {
		t.Fatalf("unexpected body %q", body)
	}

	stopStubContainers(t)
	select {
	case <-done:
	case <-time.After(serveTimeout):
		t.Fatalf("launcher did not return after the container stopped")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func stopStubContainers(t *testing.T) {
	t.Helper()
	out, err := exec.Command("docker", "ps", "-q", "--filter", "ancestor="+stubImage).Output()
	if err != nil {
		t.Fatalf("docker ps: %v", err)
	}
	for _, id := range strings.Fields(string(out)) {
		if err := exec.Command("docker", "kill", id).Run(); err != nil {
			t.Logf("docker kill %s: %v", id, err)
		}
	}
}
