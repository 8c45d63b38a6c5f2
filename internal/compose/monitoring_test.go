package compose

import (
	"testing"

	"splunkctl/internal/config"
)

func TestPrometheusScrapeConfigListsAppAndRedis(t *testing.T) {
	cfg := config.Defaults()
	cfg.AppPort = 8080
	pc := PrometheusScrapeConfig(cfg)
	var jobs []string
	for _, sc := range pc.ScrapeConfigs {
		jobs = append(jobs, sc.JobName)
	}
	if !containsPort(jobs, "app") || !containsPort(jobs, "redis") {
		t.Fatalf("expected app and redis jobs, got %v", jobs)
	}
	app := pc.ScrapeConfigs[0]
	if !containsPort(app.StaticConfigs[0].Targets, "app:8080") {
		t.Fatalf("expected app:8080 target, got %v", app.StaticConfigs[0].Targets)
	}
}

func TestPrometheusScrapeConfigListsSplunkMgmtEndpoints(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	cfg.IndexerCount = 2
	cfg.SearchHeadCount = 1
	pc := PrometheusScrapeConfig(cfg)
	var splunkTargets []string
	for _, sc := range pc.ScrapeConfigs {
		if sc.JobName == "splunk" {
			splunkTargets = sc.StaticConfigs[0].Targets
		}
	}
	for _, want := range []string{"splunk_cm:8089", "splunk_idx1:8089", "splunk_idx2:8089", "splunk_sh1:8089"} {
		if !containsPort(splunkTargets, want) {
			t.Fatalf("expected target %s, got %v", want, splunkTargets)
		}
	}
}

func TestPrometheusScrapeConfigOmitsSplunkJobWhenDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = false
	pc := PrometheusScrapeConfig(cfg)
	for _, sc := range pc.ScrapeConfigs {
		if sc.JobName == "splunk" {
			t.Fatalf("did not expect a splunk scrape job")
		}
	}
}

func TestGrafanaDatasourceConfigPointsAtPrometheusService(t *testing.T) {
	ds := GrafanaDatasourceConfig()
	if len(ds.Datasources) != 1 {
		t.Fatalf("expected exactly one datasource, got %d", len(ds.Datasources))
	}
	if ds.Datasources[0].URL != "http://prometheus:9090" {
		t.Fatalf("unexpected datasource URL: %s", ds.Datasources[0].URL)
	}
	if !ds.Datasources[0].IsDefault {
		t.Fatalf("expected datasource to be marked default")
	}
}
