package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

const redactedSentinel = "REDACTED"

// normalizedConfig is the TOML shape written by --write-effective: every
// field of EffectiveConfig except PreConfirmed, WriteEffectivePath and the
// unexported interactive flag, with
// secret values replaced by redactedSentinel so the artifact is safe to
// commit or share while still showing which secrets are populated.
type normalizedConfig struct {
	ProjectName        string                   `toml:"project_name"`
	AppPort            int                      `toml:"app_port"`
	DataDir            string                   `toml:"data_dir"`
	SplunkDataDir      string                   `toml:"splunk_data_dir"`
	EnableMonitoring   bool                     `toml:"enable_monitoring"`
	EnableSplunk       bool                     `toml:"enable_splunk"`
	EnableSecrets      bool                     `toml:"enable_secrets"`
	EnableHealthchecks bool                     `toml:"enable_healthchecks"`
	SplunkClusterMode  ClusterMode              `toml:"splunk_cluster_mode"`
	IndexerCount       int                      `toml:"indexer_count"`
	SearchHeadCount    int                      `toml:"search_head_count"`
	RF                 int                      `toml:"rf"`
	SF                 int                      `toml:"sf"`
	SplunkWebPort      int                      `toml:"splunk_web_port"`
	ResourceLimits     map[string]ResourceLimit `toml:"resource_limits"`
	Secrets            map[string]string        `toml:"secrets"`
	LogLevel           LogLevel                 `toml:"log_level"`
	DryRun             bool                     `toml:"dry_run"`
	Verbose            bool                     `toml:"verbose"`
	DeploymentMode     DeploymentMode           `toml:"deployment_mode"`
	NoValidation       bool                     `toml:"no_validation"`
}

// WriteEffective renders cfg to path as TOML with secrets redacted, mode
// 0600, per spec.md §6's output contract.
func WriteEffective(cfg EffectiveConfig, path string) error {
	redactedSecrets := make(map[string]string, len(cfg.Secrets))
	for k := range cfg.Secrets {
		redactedSecrets[k] = redactedSentinel
	}

	doc := normalizedConfig{
		ProjectName:        cfg.ProjectName,
		AppPort:            cfg.AppPort,
		DataDir:            cfg.DataDir,
		SplunkDataDir:      cfg.SplunkDataDir,
		EnableMonitoring:   cfg.EnableMonitoring,
		EnableSplunk:       cfg.EnableSplunk,
		EnableSecrets:      cfg.EnableSecrets,
		EnableHealthchecks: cfg.EnableHealthchecks,
		SplunkClusterMode:  cfg.SplunkClusterMode,
		IndexerCount:       cfg.IndexerCount,
		SearchHeadCount:    cfg.SearchHeadCount,
		RF:                 cfg.RF,
		SF:                 cfg.SF,
		SplunkWebPort:      cfg.SplunkWebPort,
		ResourceLimits:     cfg.ResourceLimits,
		Secrets:            redactedSecrets,
		LogLevel:           cfg.LogLevel,
		DryRun:             cfg.DryRun,
		Verbose:            cfg.Verbose,
		DeploymentMode:     cfg.DeploymentMode,
		NoValidation:       cfg.NoValidation,
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
