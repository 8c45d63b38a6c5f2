// Package config implements the Configuration Resolver (C2): it merges
// compiled defaults, an optional template file, the process environment, and
// CLI flags into an immutable EffectiveConfig, under the fixed precedence
// defaults < template < env < flags.
//
// Grounded on _examples/Aureuma-si/tools/si/settings.go for the overall
// shape of a layered settings loader returning a single immutable struct,
// and on internal/vault/dotenv.go (via dotenv.go in this package) for the
// template grammar.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"splunkctl/internal/errs"
)

type ClusterMode string

const (
	ClusterModeSingle  ClusterMode = "single"
	ClusterModeCluster ClusterMode = "cluster"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type DeploymentMode string

const (
	DeploymentDevelopment DeploymentMode = "development"
	DeploymentProduction  DeploymentMode = "production"
	DeploymentAirGapped   DeploymentMode = "air-gapped"
	DeploymentSecure      DeploymentMode = "secure"
)

// ResourceLimit is one service's compose deploy.resources knobs.
type ResourceLimit struct {
	CPULimit   string
	MemLimit   string
	CPUReserve string
	MemReserve string
}

// EffectiveConfig is the resolver's immutable output. Construct only via
// Resolve; nothing downstream mutates it.
type EffectiveConfig struct {
	ProjectName string
	AppPort     int
	DataDir     string
	SplunkDataDir string

	EnableMonitoring  bool
	EnableSplunk      bool
	EnableSecrets     bool
	EnableHealthchecks bool

	SplunkClusterMode ClusterMode
	IndexerCount      int
	SearchHeadCount   int
	RF                int
	SF                int
	SplunkWebPort     int

	ResourceLimits map[string]ResourceLimit
	Secrets        map[string]string

	LogLevel LogLevel
	DryRun   bool
	Verbose  bool

	DeploymentMode DeploymentMode

	// PreConfirmed records that the operator accepted continuing past a
	// preflight Insufficient verdict (spec.md §4.4).
	PreConfirmed bool
	// NoValidation skips preflight/supply-chain checks entirely (--no-validation).
	NoValidation bool

	WriteEffectivePath string

	interactiveRequested bool
}

// Interactive reports whether -i/--interactive was requested, so the CLI
// layer can decide whether to prompt past a failed preflight check
// (spec.md §4.4) before setting PreConfirmed and re-running the pipeline.
func (c EffectiveConfig) Interactive() bool { return c.interactiveRequested }

// Defaults returns the compiled baseline, the lowest layer of the precedence
// chain.
func Defaults() EffectiveConfig {
	return EffectiveConfig{
		AppPort:            8080,
		DataDir:            "./data",
		SplunkDataDir:      "./splunk-data",
		EnableMonitoring:   false,
		EnableSplunk:       false,
		EnableSecrets:      true,
		EnableHealthchecks: true,
		SplunkClusterMode:  ClusterModeSingle,
		IndexerCount:       1,
		SearchHeadCount:    1,
		RF:                 1,
		SF:                 1,
		SplunkWebPort:      8000,
		ResourceLimits:     map[string]ResourceLimit{},
		Secrets:            map[string]string{},
		LogLevel:           LogLevelInfo,
		DeploymentMode:     DeploymentDevelopment,
	}
}

// Warning is a non-fatal resolution note (e.g. single mode with multiple
// nodes) surfaced to the caller for logging.
type Warning struct {
	Field   string
	Message string
}

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+$`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
	cpuPattern    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	memPattern    = regexp.MustCompile(`^[0-9]+[KMG]i?$|^[0-9]+$`)
)

// Source bundles the inputs above compiled defaults: an optional template
// file's parsed contents, the process environment (as a lookup function so
// tests can inject a fake), and parsed CLI flags.
type Source struct {
	TemplatePath string
	Getenv       func(string) string
	Args         []string
}

// Resolve implements resolve(defaults, template_path?, env, argv) from
// spec.md §4.2. argv is parsed first only to discover --config (a template
// path supplied on the command line outranks src.TemplatePath), then the
// four layers are applied in precedence order: defaults < template < env <
// flags.
func Resolve(src Source) (EffectiveConfig, []Warning, error) {
	cfg := Defaults()
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	flags, err := parseArgs(src.Args)
	if err != nil {
		return EffectiveConfig{}, nil, errs.Wrap(errs.InvalidInput, "config.flags", err)
	}

	templatePath := src.TemplatePath
	if p, ok := flags["__config_path"]; ok {
		templatePath = p
	}
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return EffectiveConfig{}, nil, errs.Wrap(errs.InvalidInput, "config.template", err).
				WithRemediation("check the --config path exists and is readable")
		}
		tmpl, err := parseTemplate(data)
		if err != nil {
			return EffectiveConfig{}, nil, errs.Wrap(errs.InvalidInput, "config.template", err)
		}
		applyKV(&cfg, tmpl)
	}

	applyKV(&cfg, envLayer(getenv))
	applyKV(&cfg, flags)

	if v, ok := flags["__interactive"]; ok {
		cfg.interactiveRequested = v == "true"
	}
	if v, ok := flags["__no_validation"]; ok {
		cfg.NoValidation = v == "true"
	}
	if v, ok := flags["__write_effective"]; ok {
		cfg.WriteEffectivePath = v
	}
	if v, ok := flags["__splunk_password"]; ok {
		cfg.Secrets["splunk_admin_password"] = v
	}
	if v, ok := flags["__splunk_secret"]; ok {
		cfg.Secrets["splunk_secret_key"] = v
	}
	if v, ok := flags["__app_cpu"]; ok {
		rl := cfg.ResourceLimits["app"]
		rl.CPULimit = v
		cfg.ResourceLimits["app"] = rl
	}
	if v, ok := flags["__app_mem"]; ok {
		rl := cfg.ResourceLimits["app"]
		rl.MemLimit = v
		cfg.ResourceLimits["app"] = rl
	}

	var warnings []Warning

	if cfg.ProjectName == "" {
		cfg.ProjectName = autoProjectName()
	}
	if !slugPattern.MatchString(cfg.ProjectName) {
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.project_name",
			fmt.Sprintf("project_name %q must match [a-z0-9]+", cfg.ProjectName))
	}
	if len(cfg.ProjectName) > 64 {
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.project_name", "project_name exceeds 64 characters")
	}

	for _, port := range []struct {
		name string
		val  int
	}{{"app_port", cfg.AppPort}, {"splunk_web_port", cfg.SplunkWebPort}} {
		if port.val < 1 || port.val > 65535 {
			return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config."+port.name,
				fmt.Sprintf("%s=%d out of range 1..65535", port.name, port.val))
		}
	}

	if cfg.IndexerCount < 1 || cfg.SearchHeadCount < 1 || cfg.RF < 1 || cfg.SF < 1 {
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.sizing", "indexer_count, search_head_count, rf, and sf must all be >= 1")
	}
	if cfg.SF > cfg.RF || cfg.RF > cfg.IndexerCount {
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.sizing",
			fmt.Sprintf("sf (%d) must be <= rf (%d) must be <= indexer_count (%d)", cfg.SF, cfg.RF, cfg.IndexerCount))
	}

	multiNode := cfg.IndexerCount > 1 || cfg.SearchHeadCount > 1
	if cfg.SplunkClusterMode == ClusterModeSingle && multiNode {
		warnings = append(warnings, Warning{
			Field:   "splunk_cluster_mode",
			Message: "single mode requested with indexer_count>1 or search_head_count>1; a cluster master will still be synthesized",
		})
	}

	switch cfg.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.log_level", fmt.Sprintf("unknown log_level %q", cfg.LogLevel))
	}

	switch cfg.DeploymentMode {
	case DeploymentDevelopment, DeploymentProduction, DeploymentAirGapped, DeploymentSecure:
	default:
		return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.deployment_mode", fmt.Sprintf("unknown deployment_mode %q", cfg.DeploymentMode))
	}

	for svc, rl := range cfg.ResourceLimits {
		if rl.CPULimit != "" && !cpuPattern.MatchString(rl.CPULimit) {
			return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.resource_limits", fmt.Sprintf("%s: invalid cpu_limit %q", svc, rl.CPULimit))
		}
		if rl.CPUReserve != "" && !cpuPattern.MatchString(rl.CPUReserve) {
			return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.resource_limits", fmt.Sprintf("%s: invalid cpu_reserve %q", svc, rl.CPUReserve))
		}
		if rl.MemLimit != "" && !memPattern.MatchString(rl.MemLimit) {
			return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.resource_limits", fmt.Sprintf("%s: invalid mem_limit %q", svc, rl.MemLimit))
		}
		if rl.MemReserve != "" && !memPattern.MatchString(rl.MemReserve) {
			return EffectiveConfig{}, nil, errs.New(errs.InvalidInput, "config.resource_limits", fmt.Sprintf("%s: invalid mem_reserve %q", svc, rl.MemReserve))
		}
	}

	for _, dir := range []string{cfg.DataDir, cfg.SplunkDataDir} {
		if err := ensureDirUsable(dir); err != nil {
			return EffectiveConfig{}, nil, errs.Wrap(errs.InvalidInput, "config.data_dir", err).
				WithRemediation("pass a directory that exists or can be created")
		}
	}

	if cfg.EnableSecrets {
		if _, ok := cfg.Secrets["splunk_admin_password"]; !ok {
			nonInteractive := strings.EqualFold(strings.TrimSpace(getenv("NON_INTERACTIVE")), "1") ||
				strings.EqualFold(strings.TrimSpace(getenv("NON_INTERACTIVE")), "true")
			pwd, ok := "", false
			if cfg.interactiveRequested && !nonInteractive {
				attempts := atoiOr(getenv("INPUT_ATTEMPTS"), 3)
				pwd, ok = promptSecretFn("Splunk admin password", attempts)
			}
			if ok {
				cfg.Secrets["splunk_admin_password"] = pwd
			} else {
				cfg.Secrets["splunk_admin_password"] = generateSecret()
				warnings = append(warnings, Warning{
					Field:   "secrets.splunk_admin_password",
					Message: "no admin password supplied; generated one in memory",
				})
			}
		}
	}

	return cfg, warnings, nil
}

func generateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read failing means the platform's entropy source is
		// broken; there is no safe fallback.
		panic(fmt.Sprintf("config: crypto/rand unavailable: %v", err))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func ensureDirUsable(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	if _, perr := os.Stat(parent); perr != nil {
		return fmt.Errorf("%s does not exist and parent %s is not accessible: %w", dir, parent, perr)
	}
	return nil
}

func autoProjectName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "myapp"
	}
	base := strings.ToLower(filepath.Base(cwd))
	base = slugStrip.ReplaceAllString(base, "")
	if base == "" {
		return "myapp"
	}
	return base
}

// kvLayer is an intermediate representation shared by the template and
// environment layers so applyKV has one merge routine for both.
type kvLayer map[string]string

func envLayer(getenv func(string) string) kvLayer {
	layer := kvLayer{}
	for _, key := range []string{
		"PROJECT_NAME", "APP_PORT", "DATA_DIR", "SPLUNK_DATA_DIR",
		"ENABLE_MONITORING", "ENABLE_SPLUNK", "ENABLE_SECRETS", "ENABLE_HEALTHCHECKS",
		"SPLUNK_CLUSTER_MODE", "INDEXER_COUNT", "SEARCH_HEAD_COUNT",
		"REPLICATION_FACTOR", "SEARCH_FACTOR", "SPLUNK_WEB_PORT",
		"LOG_LEVEL", "DRY_RUN", "VERBOSE", "DEPLOYMENT_MODE",
	} {
		if v := getenv(key); v != "" {
			layer[key] = v
		}
	}
	if v := getenv("DEPLOYMENT_MODE"); v != "" {
		layer["DEPLOYMENT_MODE"] = v
	}
	return layer
}

func applyKV(cfg *EffectiveConfig, layer kvLayer) {
	set := func(key string, fn func(string)) {
		if v, ok := layer[key]; ok && v != "" {
			fn(v)
		}
	}
	set("PROJECT_NAME", func(v string) { cfg.ProjectName = v })
	set("APP_PORT", func(v string) { cfg.AppPort = atoiOr(v, cfg.AppPort) })
	set("DATA_DIR", func(v string) { cfg.DataDir = v })
	set("SPLUNK_DATA_DIR", func(v string) { cfg.SplunkDataDir = v })
	set("ENABLE_MONITORING", func(v string) { cfg.EnableMonitoring = boolOr(v, cfg.EnableMonitoring) })
	set("ENABLE_SPLUNK", func(v string) { cfg.EnableSplunk = boolOr(v, cfg.EnableSplunk) })
	set("ENABLE_SECRETS", func(v string) { cfg.EnableSecrets = boolOr(v, cfg.EnableSecrets) })
	set("ENABLE_HEALTHCHECKS", func(v string) { cfg.EnableHealthchecks = boolOr(v, cfg.EnableHealthchecks) })
	set("SPLUNK_CLUSTER_MODE", func(v string) { cfg.SplunkClusterMode = ClusterMode(v) })
	set("INDEXER_COUNT", func(v string) { cfg.IndexerCount = atoiOr(v, cfg.IndexerCount) })
	set("SEARCH_HEAD_COUNT", func(v string) { cfg.SearchHeadCount = atoiOr(v, cfg.SearchHeadCount) })
	set("REPLICATION_FACTOR", func(v string) { cfg.RF = atoiOr(v, cfg.RF) })
	set("SEARCH_FACTOR", func(v string) { cfg.SF = atoiOr(v, cfg.SF) })
	set("SPLUNK_WEB_PORT", func(v string) { cfg.SplunkWebPort = atoiOr(v, cfg.SplunkWebPort) })
	set("LOG_LEVEL", func(v string) { cfg.LogLevel = LogLevel(v) })
	set("DRY_RUN", func(v string) { cfg.DryRun = boolOr(v, cfg.DryRun) })
	set("VERBOSE", func(v string) { cfg.Verbose = boolOr(v, cfg.Verbose) })
	set("DEPLOYMENT_MODE", func(v string) { cfg.DeploymentMode = DeploymentMode(v) })
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func boolOr(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}
