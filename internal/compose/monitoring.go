package compose

import (
	"fmt"

	"splunkctl/internal/config"
)

// PrometheusConfig is the scrape-config document written to
// ${WORKDIR}/config/prometheus.yml when monitoring is enabled. Shape
// follows Prometheus's own config grammar (global + scrape_configs), the
// same minimal subset GoogleCloudPlatform-prometheus-engine's operator
// renders for its managed collectors.
type PrometheusConfig struct {
	Global        PrometheusGlobal `yaml:"global"`
	ScrapeConfigs []ScrapeConfig   `yaml:"scrape_configs"`
}

type PrometheusGlobal struct {
	ScrapeInterval string `yaml:"scrape_interval"`
}

type ScrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	StaticConfigs []StaticConfig `yaml:"static_configs"`
}

type StaticConfig struct {
	Targets []string `yaml:"targets"`
}

// PrometheusScrapeConfig builds the scrape targets scenario §8.4 names:
// the app service, redis, and every Splunk management endpoint when the
// Splunk stack is enabled. Targets are container-network hostnames (the
// compose service names), not host-mapped ports, since Prometheus scrapes
// from inside app-net/splunk-net.
func PrometheusScrapeConfig(cfg config.EffectiveConfig) PrometheusConfig {
	pc := PrometheusConfig{
		Global: PrometheusGlobal{ScrapeInterval: "15s"},
		ScrapeConfigs: []ScrapeConfig{
			{JobName: "app", StaticConfigs: []StaticConfig{{Targets: []string{fmt.Sprintf("app:%d", cfg.AppPort)}}}},
			{JobName: "redis", StaticConfigs: []StaticConfig{{Targets: []string{"redis:6379"}}}},
		},
	}
	if cfg.EnableSplunk {
		var targets []string
		multiNode := cfg.IndexerCount > 1 || cfg.SearchHeadCount > 1
		if multiNode {
			targets = append(targets, "splunk_cm:8089")
		}
		for i := 1; i <= cfg.IndexerCount; i++ {
			targets = append(targets, fmt.Sprintf("splunk_idx%d:8089", i))
		}
		for i := 1; i <= cfg.SearchHeadCount; i++ {
			targets = append(targets, fmt.Sprintf("splunk_sh%d:8089", i))
		}
		pc.ScrapeConfigs = append(pc.ScrapeConfigs, ScrapeConfig{JobName: "splunk", StaticConfigs: []StaticConfig{{Targets: targets}}})
	}
	return pc
}

// GrafanaDatasourceFile is the provisioning document written to
// ${WORKDIR}/config/grafana-datasources.yml, in Grafana's own
// provisioning-file grammar (apiVersion + datasources list) so it can be
// bind-mounted straight into /etc/grafana/provisioning/datasources.
type GrafanaDatasourceFile struct {
	APIVersion  int                 `yaml:"apiVersion"`
	Datasources []GrafanaDatasource `yaml:"datasources"`
}

type GrafanaDatasource struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Access    string `yaml:"access"`
	URL       string `yaml:"url"`
	IsDefault bool   `yaml:"isDefault"`
}

// GrafanaDatasourceConfig wires Grafana's sole datasource to the
// Prometheus service by its compose service name.
func GrafanaDatasourceConfig() GrafanaDatasourceFile {
	return GrafanaDatasourceFile{
		APIVersion: 1,
		Datasources: []GrafanaDatasource{
			{Name: "Prometheus", Type: "prometheus", Access: "proxy", URL: "http://prometheus:9090", IsDefault: true},
		},
	}
}
