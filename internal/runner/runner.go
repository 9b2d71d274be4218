// Package runner is the launcher's top level: it parses launcher flags,
// resolves configuration, and drives analyze, translate, build and invoke
// for the forwarded command.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/WorldWideTelescope/wwt-aligner/internal/configstore"
	"github.com/WorldWideTelescope/wwt-aligner/internal/dockerrun"
	"github.com/WorldWideTelescope/wwt-aligner/internal/openflag"
	"github.com/WorldWideTelescope/wwt-aligner/internal/telemetry/otel"
	"github.com/WorldWideTelescope/wwt-aligner/internal/translate"
)

const (
	envImage   = "WWT_ALIGNER_IMAGE"
	envDocker  = "WWT_ALIGNER_DOCKER"
	envVerbose = "WWT_ALIGNER_VERBOSE"
)

var loadConfigFile = configstore.Load

type options struct {
	image       string
	docker      string
	verbose     bool
	noTTY       bool
	showHelp    bool
	showVersion bool
	command     []string
}

type config struct {
	program        string
	image          string
	mountPrefix    string
	selinuxRelabel bool
	openBrowser    bool
	env            map[string]string
}

type runner struct {
	opts options
	cfg  config

	workDir string
	verbose bool

	logger *log.Logger
	stdout io.Writer
	inst   *otel.Instruments
}

// ExitCodeError carries the exit status main should terminate with. Whatever
// needed saying was already printed, so main exits without further output.
type ExitCodeError struct {
	code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.code)
}

func (e *ExitCodeError) ExitCode() int {
	return e.code
}

// Main runs the launcher with the provided argv slice. When args is empty,
// os.Args is used.
func Main(args []string) error {
	if len(args) == 0 {
		args = os.Args
	}
	return execute(commandName(args), args[1:], os.Stdout, os.Stderr)
}

func execute(cmdName string, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(cmdName, args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		fmt.Fprintln(stdout, usage(cmdName))
		return nil
	}
	if opts.showVersion {
		writeVersion(stdout)
		return nil
	}
	if len(opts.command) == 0 {
		fmt.Fprintln(stderr, usage(cmdName))
		return errors.New("a command is required")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := ensureCommand(cfg.program); err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	ctx := context.Background()
	telemetryCfg := otel.LoadConfigFromEnv()
	telemetryCfg.TraceWriter = stderr
	telemetryCfg.MetricWriter = stderr
	provider, err := otel.Setup(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	r := &runner{
		opts:    opts,
		cfg:     cfg,
		workDir: workDir,
		verbose: opts.verbose || openflag.IsTruthy(os.Getenv(envVerbose)),
		logger:  log.New(stderr, "", 0),
		stdout:  stdout,
		inst:    provider.Instruments(),
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			r.debugf("telemetry shutdown: %v", err)
		}
	}()

	return r.run(ctx)
}

func usage(cmdName string) string {
	return fmt.Sprintf(`Usage: %[1]s [flags] <command> [args...]

Run a WWT Aligner command inside its container. Files named on the
command line are bind-mounted into the container and the arguments are
rewritten to point at them.

Flags:
  --image <name[:tag]>   Agent image (defaults to %[2]s).
  --docker <program>     Container CLI to use (defaults to %[3]s).
  --no-tty               Never allocate a terminal for the container.
  -V, --verbose          Enable verbose logging.
  -h, --help             Show this help.
  --version              Print version information.

Use "%[1]s help <command>" for help on a specific command.

Environment variables:
  WWT_ALIGNER_IMAGE        Default agent image (overridden by --image).
  WWT_ALIGNER_DOCKER       Default container CLI (overridden by --docker).
  WWT_ALIGNER_VERBOSE      Enable verbose logging.
  WWT_ALIGNER_NO_BROWSER   Do not open a browser for published services.
  WWT_ALIGNER_HOME         Directory holding config.toml.
  WWT_ALIGNER_OTEL_TRACES  Print tracing spans for each launcher stage.
  WWT_ALIGNER_OTEL_METRICS Print launcher metrics on exit.

Persisted settings live at $XDG_CONFIG_HOME/wwt-aligner/config.toml (or
~/.config/wwt-aligner/config.toml).`, cmdName, dockerrun.DefaultImage, dockerrun.DefaultProgram)
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "wwt-aligner"
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return "wwt-aligner"
	}
	return filepath.Base(name)
}

// parseArgs reads launcher flags up to the first non-flag argument;
// everything from there on belongs to the agent.
func parseArgs(cmdName string, args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet(cmdName, pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.image, "image", "", "agent image")
	flagSet.StringVar(&opts.docker, "docker", "", "container CLI")
	flagSet.BoolVar(&opts.noTTY, "no-tty", false, "never allocate a terminal")
	flagSet.BoolVarP(&opts.verbose, "verbose", "V", false, "verbose logging")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			return opts, nil
		}
		return opts, fmt.Errorf("%w (see %s --help)", err, cmdName)
	}

	rest := flagSet.Args()
	if len(rest) > 0 && rest[0] == "help" {
		if len(rest) == 1 {
			opts.showHelp = true
			return opts, nil
		}
		rest = append(append([]string{}, rest[1:]...), "--help")
	}
	opts.command = rest
	return opts, nil
}

// loadConfig layers flags over environment over config.toml over defaults.
func loadConfig(opts options) (config, error) {
	file, err := loadConfigFile()
	if err != nil {
		return config{}, err
	}

	cfg := config{
		program:        envOrDefault(envDocker, firstNonEmpty(file.Docker, dockerrun.DefaultProgram)),
		image:          envOrDefault(envImage, firstNonEmpty(file.Image, dockerrun.DefaultImage)),
		mountPrefix:    firstNonEmpty(file.MountPrefix, translate.DefaultMountPrefix),
		selinuxRelabel: file.SELinuxRelabel,
		openBrowser:    file.BrowserEnabled() && !openflag.Suppressed(),
		env:            file.Env,
	}
	if v := strings.TrimSpace(opts.docker); v != "" {
		cfg.program = v
	}
	if v := strings.TrimSpace(opts.image); v != "" {
		cfg.image = v
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func ensureCommand(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH; is it installed?", name)
	}
	return nil
}

func (r *runner) debugf(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}
