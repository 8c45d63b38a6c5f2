package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
	"splunkctl/internal/containerapi"
	"splunkctl/internal/errs"
	"splunkctl/internal/health"
	"splunkctl/internal/logx"
	"splunkctl/internal/orchestrator"
	"splunkctl/internal/preflight"
	ctrruntime "splunkctl/internal/runtime"
)

const orchestrateUsageText = `usage: splunkctl orchestrate [--config FILE] [--port N] [--data-dir DIR]
  [--project-name NAME] [-i|--interactive] [--with-monitoring|--no-monitoring]
  [--with-splunk|--no-splunk] [--splunk-mode single|cluster]
  [--splunk-web-port N] [--indexers N] [--search-heads N]
  [--replication-factor N] [--search-factor N] [--splunk-data-dir DIR]
  [--splunk-password PWD] [--splunk-secret KEY] [--app-cpu F] [--app-mem SIZE]
  [--dry-run] [--verbose] [--log-level LEVEL] [--no-validation]
  [--write-effective PATH] [--help]`

// splunkBootGrace is the one-shot sleep applied before the first health
// poll of any Splunk service (spec.md §4.8 names the need for this grace
// period without naming a value).
const splunkBootGrace = 45 * time.Second

// cmdOrchestrate wires config.Resolve -> runtime.Detect -> preflight ->
// orchestrator.Run -> health.Wait, the full pipeline spec.md §4.7 and §4.8
// describe, translating the result into the exit code table from §6.
func cmdOrchestrate(args []string) {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			printUsage(orchestrateUsageText)
			return
		}
	}

	cfg, warnings, err := config.Resolve(config.Source{Getenv: os.Getenv, Args: args})
	if err != nil {
		fatal(err)
	}
	for _, w := range warnings {
		warnf("%s: %s", w.Field, w.Message)
	}

	level, err := logx.ParseLevel(string(cfg.LogLevel))
	if err != nil {
		level = logx.LevelInfo
	}
	if cfg.Verbose {
		level = logx.LevelDebug
	}
	log := logx.New(level)

	workDir, err := os.Getwd()
	if err != nil {
		fatal(errs.Wrap(errs.InvalidInput, "orchestrate", err))
	}
	opts := orchestrator.DefaultOptions(workDir)
	if dir := os.Getenv("STATE_DIR"); dir != "" {
		opts.StateDir = dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.NoValidation {
		cfg = maybeConfirmPastPreflight(ctx, cfg, log)
	}

	result, runErr := orchestrator.Run(ctx, cfg, opts, log)
	if runErr != nil {
		reportIncomplete(result.IncompleteSteps, opts.StateDir)
		fatal(runErr)
	}

	for _, w := range result.Warnings {
		warnf("%s", w)
	}
	if len(result.Violations) > 0 {
		for _, v := range result.Violations {
			warnf("supply chain: %s: %s", v.Service, v.Reason)
		}
	}

	if cfg.DryRun {
		fmt.Println(styleSuccess("dry run complete") + ": compose file written to " + result.ComposePath)
		return
	}

	fmt.Println(styleSuccess("stack is up") + ": " + result.ComposePath)

	client, cerr := newContainerInspector()
	if cerr != nil {
		warnf("skipping health wait: %v", cerr)
		return
	}
	specs := buildServiceSpecs(cfg, result.Document)
	report, waitErr := health.Wait(ctx, client, specs, health.DefaultBudget())
	fmt.Print(report.Summary())
	if waitErr != nil {
		for name, tail := range report.LogTails {
			fmt.Fprintf(os.Stderr, "%s log tail:\n%s\n", name, tail)
		}
		fatal(waitErr)
	}
	fmt.Println(styleSuccess("all services healthy"))
}

// maybeConfirmPastPreflight runs a preflight check ahead of the pipeline so
// an interactive operator can confirm past an Insufficient verdict before
// orchestrator.Run redoes the same check (and would otherwise abort on it),
// per spec.md §4.4.
func maybeConfirmPastPreflight(ctx context.Context, cfg config.EffectiveConfig, log *logx.Logger) config.EffectiveConfig {
	det := ctrruntime.New()
	caps, err := det.Detect(ctx)
	if err != nil {
		return cfg
	}
	report := preflight.Run(cfg, caps)
	if report.Ok() {
		return cfg
	}
	if !cfg.Interactive() {
		return cfg
	}
	log.Warnf("preflight found issues: %v", report.Reasons)
	ok, answered := confirmYN("continue anyway?", false)
	if answered && ok {
		cfg.PreConfirmed = true
	}
	return cfg
}

func reportIncomplete(steps []string, stateDir string) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, styleWarn("incomplete steps:"), strings.Join(steps, ", "))
	fmt.Fprintln(os.Stderr, styleDim("state directory: "+stateDir))
}

func newContainerInspector() (health.ContainerInspector, error) {
	client, err := containerapi.NewClient()
	if err != nil {
		return nil, err
	}
	return health.ClientAdapter{Client: client}, nil
}

var composeVarRe = regexp.MustCompile(`\$\{([A-Z_]+):-([^}]*)\}`)

// resolveComposeVars evaluates the "${NAME:-default}" shell-style
// substitutions compose.Synthesize embeds into container names, the same
// grammar `docker compose` itself resolves at apply time.
func resolveComposeVars(s string, getenv func(string) string) string {
	return composeVarRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := composeVarRe.FindStringSubmatch(m)
		if v := getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// buildServiceSpecs maps the rendered compose document's services onto the
// health waiter's contract: container name, an optional HTTP endpoint for
// services with a mapped host port, and a one-shot boot grace for Splunk
// services.
func buildServiceSpecs(cfg config.EffectiveConfig, doc compose.Document) []health.ServiceSpec {
	specs := make([]health.ServiceSpec, 0, len(doc.Services))
	for name, svc := range doc.Services {
		spec := health.ServiceSpec{
			Name:          name,
			ContainerName: resolveComposeVars(svc.ContainerName, os.Getenv),
		}
		if strings.HasPrefix(name, "splunk") {
			spec.SplunkGrace = splunkBootGrace
		}
		if host, ok := hostPortOf(svc); ok {
			spec.Endpoint = fmt.Sprintf("http://localhost:%s", host)
		}
		specs = append(specs, spec)
	}
	return specs
}

func hostPortOf(svc compose.Service) (string, bool) {
	if len(svc.Ports) == 0 {
		return "", false
	}
	mapping := svc.Ports[0]
	idx := strings.Index(mapping, ":")
	if idx < 0 {
		return "", false
	}
	return mapping[:idx], true
}
