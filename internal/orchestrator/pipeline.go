package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
	"splunkctl/internal/errs"
	"splunkctl/internal/logx"
	"splunkctl/internal/manifest"
	"splunkctl/internal/preflight"
	"splunkctl/internal/runtime"
	"splunkctl/internal/supplychain"

	"gopkg.in/yaml.v3"
)

// Options bundles everything the pipeline needs beyond the resolved
// configuration: where to keep state, how long to wait, and which manifest
// to resolve images from.
type Options struct {
	WorkDir        string
	StateDir       string
	ManifestPath   string
	ComposePath    string
	LockTimeout    time.Duration
	LockStaleAfter time.Duration
	UpDeadline     time.Duration
	PullDeadline   time.Duration
}

// DefaultOptions fills unset fields relative to workDir, mirroring the
// teacher's pattern of deriving state paths from a single root
// (resolvePaasStateRoot) rather than requiring every caller to spell them
// out.
func DefaultOptions(workDir string) Options {
	return Options{
		WorkDir:        workDir,
		StateDir:       filepath.Join(workDir, ".orchestrator-state"),
		ManifestPath:   filepath.Join(workDir, "versions.manifest"),
		ComposePath:    filepath.Join(workDir, "compose.yaml"),
		LockTimeout:    5 * time.Second,
		LockStaleAfter: 2 * time.Hour,
		UpDeadline:     3 * time.Minute,
		PullDeadline:   5 * time.Minute,
	}
}

// Result reports what the pipeline produced, for the CLI layer to render.
type Result struct {
	ComposePath     string
	Document        compose.Document
	Warnings        []string
	Violations      []supplychain.Violation
	IncompleteSteps []string
	Capabilities    runtime.Capabilities
	Preflight       preflight.Report
}

// Run executes the pipeline: detect_runtime -> preflight -> prepare_dirs ->
// write_support_configs -> parse_manifest -> render_compose ->
// supply_chain_validate -> pull_images -> up. cfg is assumed already
// resolved (the "parse" step lives in config.Resolve, run by the caller
// before Run so CLI argument errors surface before any state directory is
// touched). Run does not wait for health; the caller runs the health wait
// on Result.Document after Run returns. On failure the returned Result
// carries the steps that never completed.
func Run(ctx context.Context, cfg config.EffectiveConfig, opts Options, log *logx.Logger) (res Result, runErr error) {
	release, err := AcquireLock(filepath.Join(opts.WorkDir, ".orchestrator.lock"), opts.LockTimeout, opts.LockStaleAfter)
	if err != nil {
		return Result{}, errs.Wrap(errs.RuntimeUnreachable, "lock", err)
	}
	cleanup := NewCleanupRegistry()
	cleanup.Register("lock", func() error { release(); return nil })
	defer cleanup.Run()

	ledger, err := NewStepLedger(opts.StateDir)
	if err != nil {
		return Result{}, errs.Wrap(errs.InvalidInput, "prepare_dirs", err)
	}
	defer func() {
		if runErr != nil {
			res.IncompleteSteps = ledger.IncompleteSteps()
		}
	}()

	var result Result

	det := runtime.New()
	if err := ledger.Step("detect_runtime", func() error {
		caps, err := det.Detect(ctx)
		if err != nil {
			return errs.Wrap(errs.DetectionFailed, "detect_runtime", err)
		}
		result.Capabilities = caps
		return nil
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}

	if !cfg.NoValidation {
		if err := ledger.Step("preflight", func() error {
			report := preflight.Run(cfg, result.Capabilities)
			result.Preflight = report
			if !report.Ok() && !cfg.PreConfirmed {
				return errs.New(errs.Insufficient, "preflight", fmt.Sprintf("host does not meet minimum requirements: %v", report.Reasons))
			}
			return nil
		}); err != nil {
			return result, finish(cleanup, ledger, result, err)
		}
	}

	if err := ledger.Step("prepare_dirs", func() error {
		for _, d := range []string{cfg.DataDir, opts.StateDir} {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return err
			}
		}
		if cfg.EnableSplunk {
			if err := os.MkdirAll(cfg.SplunkDataDir, 0o755); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}

	if err := ledger.Step("write_support_configs", func() error {
		if cfg.WriteEffectivePath != "" {
			if err := config.WriteEffective(cfg, cfg.WriteEffectivePath); err != nil {
				return err
			}
		}
		if err := writeDotEnv(cfg, opts); err != nil {
			return err
		}
		if cfg.EnableMonitoring {
			if err := writeMonitoringConfigs(cfg, opts.WorkDir); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}

	var m *manifest.Manifest
	if err := ledger.Step("parse_manifest", func() error {
		data, err := os.ReadFile(opts.ManifestPath)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parse_manifest", err)
		}
		m, err = manifest.Load(data)
		if err != nil {
			return errs.Wrap(errs.InvalidInput, "parse_manifest", err)
		}
		return nil
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}

	var doc compose.Document
	var synthWarnings []compose.Warning
	if err := ledger.Step("render_compose", func() error {
		var err error
		doc, synthWarnings, err = compose.Synthesize(cfg, result.Capabilities, m)
		if err != nil {
			return err
		}
		for _, w := range synthWarnings {
			result.Warnings = append(result.Warnings, w.Field+": "+w.Message)
		}
		return compose.RenderAtomic(doc, opts.ComposePath, result.Capabilities.Runtime, string(result.Capabilities.ComposeImpl))
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}
	result.ComposePath = opts.ComposePath
	result.Document = doc

	if err := ledger.Step("supply_chain_validate", func() error {
		violations := supplychain.Validate(doc, cfg.DeploymentMode)
		result.Violations = violations
		if len(violations) > 0 && supplychain.Enforcing(cfg.DeploymentMode) {
			return errs.New(errs.SupplyChainViolation, "supply_chain_validate", fmt.Sprintf("%d unpinned critical image(s) in %s mode", len(violations), cfg.DeploymentMode))
		}
		return nil
	}); err != nil {
		return result, finish(cleanup, ledger, result, err)
	}

	if cfg.DryRun {
		log.Infof("dry run: skipping pull_images, up, wait_health")
		return result, finish(cleanup, ledger, result, nil)
	}

	cleanup.Register("compose_down_on_failure", func() error { return nil })

	pullPolicy := Policy{Retries: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, JitterMS: 250, Strategy: StrategyExponential}
	if err := ledger.Step("pull_images", func() error {
		pullCtx, cancel := context.WithTimeout(ctx, opts.PullDeadline)
		defer cancel()
		return Do(pullCtx, pullPolicy, func(c context.Context) error {
			_, err := det.Compose(c, "-f", opts.ComposePath, "pull")
			return classifyComposeErr(err)
		})
	}); err != nil {
		registerComposeDown(cleanup, det, opts.ComposePath, log)
		return result, finish(cleanup, ledger, result, err)
	}

	upPolicy := Policy{Retries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, JitterMS: 200, Strategy: StrategyFullJitter}
	if err := ledger.Step("up", func() error {
		upCtx, cancel := context.WithTimeout(ctx, opts.UpDeadline)
		defer cancel()
		return Do(upCtx, upPolicy, func(c context.Context) error {
			_, err := det.Compose(c, "-f", opts.ComposePath, "up", "-d")
			return classifyComposeErr(err)
		})
	}); err != nil {
		registerComposeDown(cleanup, det, opts.ComposePath, log)
		result.IncompleteSteps = ledger.IncompleteSteps()
		return result, finish(cleanup, ledger, result, err)
	}

	result.IncompleteSteps = ledger.IncompleteSteps()
	return result, nil
}

// writeDotEnv emits ${WORKDIR}/.env, mode 0600 per spec.md §6's output
// contract, so `docker compose` resolves the ${PROJECT:-...},
// ${LOG_LEVEL:-...}, ${SPLUNK_PASSWORD:?...} and ${STATE_DIR} references
// the synthesizer embeds into the rendered compose document without the
// operator having to export them by hand.
func writeDotEnv(cfg config.EffectiveConfig, opts Options) error {
	lines := []string{
		fmt.Sprintf("PROJECT=%s", cfg.ProjectName),
		fmt.Sprintf("LOG_LEVEL=%s", cfg.LogLevel),
		fmt.Sprintf("STATE_DIR=%s", opts.StateDir),
	}
	if cfg.EnableSplunk {
		lines = append(lines, fmt.Sprintf("SPLUNK_PASSWORD=%s", cfg.Secrets["splunk_admin_password"]))
	}
	body := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(filepath.Join(opts.WorkDir, ".env"), []byte(body), 0o600)
}

// writeMonitoringConfigs renders the Prometheus scrape config and Grafana
// datasource provisioning file under ${WORKDIR}/config/, per spec.md §6's
// "Files written" list and scenario §8.4.
func writeMonitoringConfigs(cfg config.EffectiveConfig, workDir string) error {
	dir := filepath.Join(workDir, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	prom, err := yaml.Marshal(compose.PrometheusScrapeConfig(cfg))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "prometheus.yml"), prom, 0o644); err != nil {
		return err
	}

	datasource, err := yaml.Marshal(compose.GrafanaDatasourceConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "grafana-datasources.yml"), datasource, 0o644)
}

// classifyComposeErr marks every compose-invocation failure as transient so
// the retry combinator absorbs it up to its budget; spec.md §4.7 names
// image pull and `compose up` as retryable operations by default.
func classifyComposeErr(err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.TransientOperation, "compose", err)
}

func registerComposeDown(cleanup *CleanupRegistry, det *runtime.Detector, composePath string, log *logx.Logger) {
	cleanup.Register("compose_down_on_failure", func() error {
		log.Warnf("running bounded cleanup: compose down --remove-orphans")
		downCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := det.Compose(downCtx, "-f", composePath, "down", "--remove-orphans")
		return err
	})
}

// finish runs the cleanup registry and folds its errors into runErr if any.
// It receives result by value, so the steps that never completed reach the
// CLI layer through Run's deferred hook, not through finish.
func finish(cleanup *CleanupRegistry, ledger *StepLedger, result Result, runErr error) error {
	result.IncompleteSteps = ledger.IncompleteSteps()
	cleanupErrs := cleanup.Run()
	if runErr != nil {
		return runErr
	}
	if len(cleanupErrs) > 0 {
		return fmt.Errorf("cleanup errors: %v", cleanupErrs)
	}
	return nil
}
