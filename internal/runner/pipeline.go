package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/term"

	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
	"github.com/WorldWideTelescope/wwt-aligner/internal/dockerrun"
	"github.com/WorldWideTelescope/wwt-aligner/internal/translate"
)

var (
	isTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}

	// browserDelay gives a detached service a moment to bind its port.
	browserDelay = 2 * time.Second
)

func (r *runner) run(ctx context.Context) error {
	payload, err := r.analyze(ctx)
	if err != nil {
		return err
	}

	result, err := r.mapArgs(ctx, payload)
	if err != nil {
		return err
	}

	detached := len(payload.PublishedPorts) > 0
	builder := dockerrun.Builder{
		Program:        r.cfg.program,
		Image:          r.cfg.image,
		Interactive:    !detached && !r.opts.noTTY && isTerminal(),
		SELinuxRelabel: r.cfg.selinuxRelabel,
		Env:            r.cfg.env,
	}
	inv := builder.Build(result, payload.PublishedPorts)
	r.debugf("running: %s %s", inv.Program, shellQuote(inv.CommandLine()))

	return r.invoke(ctx, inv, detached)
}

func (r *runner) analyze(ctx context.Context) (argsproto.Payload, error) {
	h, stageCtx := r.inst.Start(ctx, "analyze", attribute.String("image", r.cfg.image))
	analyzer := dockerrun.NewAnalyzer(r.cfg.program, r.cfg.image, r.logger)
	r.debugf("analyzing: %s %s %s", r.cfg.program, shellQuote(analyzer.Prefix), shellQuote(r.opts.command))
	analysis, err := analyzer.Analyze(stageCtx, r.opts.command)
	r.inst.Finish(h, err)
	if err != nil {
		return argsproto.Payload{}, err
	}

	if code, early := analysis.EarlyExit(); early {
		// The agent already explained itself on stderr.
		return argsproto.Payload{}, &ExitCodeError{code: code}
	}
	payload, _ := analysis.Payload()
	return payload, nil
}

func (r *runner) mapArgs(ctx context.Context, payload argsproto.Payload) (translate.Result, error) {
	h, stageCtx := r.inst.Start(ctx, "translate", attribute.Int("pieces", len(payload.Pieces)))
	result, err := r.translatePayload(payload)
	r.inst.Finish(h, err, attribute.Int("mounts", len(result.Mounts)))
	if err != nil {
		return translate.Result{}, err
	}

	var ro, rw int
	for _, m := range result.Mounts {
		if m.ReadWrite {
			rw++
		} else {
			ro++
		}
		r.debugf("mount %s -> %s (%s)", m.HostDir, m.ContainerDir, m.Mode())
	}
	r.inst.RecordMounts(stageCtx, ro, rw)
	return result, nil
}

func (r *runner) translatePayload(payload argsproto.Payload) (translate.Result, error) {
	mapper, err := translate.NewMapper(r.workDir, r.cfg.mountPrefix)
	if err != nil {
		return translate.Result{}, err
	}
	return translate.Translate(mapper, payload)
}

func (r *runner) invoke(ctx context.Context, inv dockerrun.Invocation, detached bool) error {
	h, stageCtx := r.inst.Start(ctx, "invoke",
		attribute.String("container", inv.Name),
		attribute.Bool("detached", detached),
	)
	invoker := dockerrun.NewInvoker(r.logger)

	var (
		outcome dockerrun.Outcome
		err     error
	)
	if detached {
		url := inv.Ports[0].URL()
		r.logger.Printf("Starting service container %s; it will be available at %s", inv.Name, url)
		r.logger.Printf("Stop it with: %s stop %s", inv.Program, inv.Name)
		var side func(context.Context) error
		if r.cfg.openBrowser {
			side = r.browserAction(url)
		}
		outcome, err = invoker.RunDetached(stageCtx, inv, side)
	} else {
		outcome, err = invoker.Run(stageCtx, inv)
	}
	if err == nil && outcome.Kind != dockerrun.Success {
		err = &ExitCodeError{code: outcome.ExitCode()}
	}
	r.inst.Finish(h, err, attribute.Int("exit_code", outcome.ExitCode()))
	return err
}

func (r *runner) browserAction(url string) func(context.Context) error {
	return func(ctx context.Context) error {
		if browserDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(browserDelay):
			}
		}
		r.debugf("opening %s", url)
		if err := openBrowser(url); err != nil {
			return fmt.Errorf("could not open a browser for %s: %w", url, err)
		}
		return nil
	}
}
