package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splunkctl/internal/config"
	"splunkctl/internal/manifest"
	"splunkctl/internal/runtime"
)

const testManifest = `APP_REPO=my-org/my-app
APP_DIGEST=sha256:` + repeat("a", 64) + `
REDIS_REPO=redis
REDIS_DIGEST=sha256:` + repeat("b", 64) + `
SPLUNK_REPO=splunk/splunk
SPLUNK_DIGEST=sha256:` + repeat("c", 64) + `
PROMETHEUS_REPO=prom/prometheus
PROMETHEUS_DIGEST=sha256:` + repeat("d", 64) + `
GRAFANA_REPO=grafana/grafana
GRAFANA_DIGEST=sha256:` + repeat("e", 64) + `
`

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}

func mustManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load([]byte(testManifest))
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	return m
}

func dockerV2Caps() runtime.Capabilities {
	return runtime.Capabilities{Runtime: "docker", ComposeImpl: runtime.ImplDockerV2, Secrets: true, Healthcheck: true, Profiles: true}
}

func TestSynthesizeMinimalApp(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProjectName = "demo1"
	cfg.AppPort = 8080
	cfg.EnableSplunk = false
	cfg.EnableMonitoring = false

	doc, warnings, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if _, ok := doc.Services["app"]; !ok {
		t.Fatalf("expected app service")
	}
	if _, ok := doc.Services["redis"]; !ok {
		t.Fatalf("expected redis service")
	}
	if _, ok := doc.Networks["splunk-net"]; ok {
		t.Fatalf("did not expect splunk-net without splunk enabled")
	}
	if doc.Secrets == nil {
		t.Fatalf("expected secrets block (capabilities.secrets=1, enable_secrets default true)")
	}
	for _, want := range []string{"app-data", "app-logs", "redis-data"} {
		if _, ok := doc.Volumes[want]; !ok {
			t.Fatalf("expected volume %s", want)
		}
	}
	app := doc.Services["app"]
	if app.Image != "my-org/my-app@sha256:"+repeat("a", 64) {
		t.Fatalf("unexpected app image: %s", app.Image)
	}
}

func TestSynthesizeSingleModeWithOneIndexerHasNoClusterMaster(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	cfg.IndexerCount = 1
	cfg.SearchHeadCount = 1
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, ok := doc.Services["splunk_cm"]; ok {
		t.Fatalf("did not expect a cluster master with indexer_count=1")
	}
}

func TestSynthesizeMultiNodeIncludesClusterMaster(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	cfg.IndexerCount = 2
	cfg.SearchHeadCount = 1
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, ok := doc.Services["splunk_cm"]; !ok {
		t.Fatalf("expected a cluster master with indexer_count=2")
	}
	idx2, ok := doc.Services["splunk_idx2"]
	if !ok {
		t.Fatalf("expected splunk_idx2")
	}
	if !containsPort(idx2.Ports, "9998:9998") {
		t.Fatalf("expected indexer 2 S2S port 9998, got %v", idx2.Ports)
	}
	if !containsPort(idx2.Ports, "8089:8089") {
		t.Fatalf("expected indexer 2 HEC port 8089, got %v", idx2.Ports)
	}
}

func TestSynthesizeSearchHeadPortFormula(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	cfg.IndexerCount = 1
	cfg.SearchHeadCount = 2
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	sh2, ok := doc.Services["splunk_sh2"]
	if !ok {
		t.Fatalf("expected splunk_sh2")
	}
	if !containsPort(sh2.Ports, "8001:8001") {
		t.Fatalf("expected search head 2 web port 8001, got %v", sh2.Ports)
	}
	if !containsPort(sh2.Ports, "8100:8089") {
		t.Fatalf("expected search head 2 mgmt port 8100->8089, got %v", sh2.Ports)
	}
}

func TestSynthesizeAttachesSplunkProfileWhenCapable(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	cfg.IndexerCount = 2
	cfg.SearchHeadCount = 1
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	for _, name := range []string{"splunk_cm", "splunk_idx1", "splunk_idx2", "splunk_sh1"} {
		svc, ok := doc.Services[name]
		if !ok {
			t.Fatalf("expected service %s", name)
		}
		if !containsPort(svc.Profiles, "splunk") {
			t.Fatalf("expected %s to carry profile splunk, got %v", name, svc.Profiles)
		}
	}
}

func TestSynthesizeOmitsSplunkProfileWithoutCapability(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableSplunk = true
	caps := dockerV2Caps()
	caps.Profiles = false
	doc, _, err := Synthesize(cfg, caps, mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(doc.Services["splunk_idx1"].Profiles) != 0 {
		t.Fatalf("must not emit profiles without capability")
	}
}

func TestSynthesizeMonitoringProfileGatedOnCapability(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableMonitoring = true
	caps := dockerV2Caps()
	caps.Profiles = false
	doc, _, err := Synthesize(cfg, caps, mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(doc.Services["prometheus"].Profiles) != 0 || len(doc.Services["grafana"].Profiles) != 0 {
		t.Fatalf("must not emit profiles without capability")
	}
}

func TestSynthesizeGrafanaDependsOnPrometheusWhenHealthcheckCapable(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableMonitoring = true
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	dep, ok := doc.Services["grafana"].DependsOn["prometheus"]
	if !ok {
		t.Fatalf("expected grafana to depend on prometheus")
	}
	if dep.Condition != "service_healthy" {
		t.Fatalf("expected service_healthy condition, got %s", dep.Condition)
	}
}

func TestSynthesizeGrafanaHasNoDependsOnWithoutHealthcheckCapability(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableMonitoring = true
	caps := dockerV2Caps()
	caps.Healthcheck = false
	doc, _, err := Synthesize(cfg, caps, mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if doc.Services["grafana"].DependsOn != nil {
		t.Fatalf("did not expect depends_on without healthcheck capability")
	}
}

func TestSynthesizeNoSecretsWithoutCapability(t *testing.T) {
	cfg := config.Defaults()
	caps := dockerV2Caps()
	caps.Secrets = false
	doc, _, err := Synthesize(cfg, caps, mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if doc.Secrets != nil {
		t.Fatalf("must not emit secrets without capability")
	}
}

func containsPort(ports []string, want string) bool {
	for _, p := range ports {
		if p == want {
			return true
		}
	}
	return false
}

func TestRenderAtomicIsDeterministicModuloTimestamp(t *testing.T) {
	nowFn = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { nowFn = time.Now }()

	cfg := config.Defaults()
	doc, _, err := Synthesize(cfg, dockerV2Caps(), mustManifest(t))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	if err := RenderAtomic(doc, path, "docker", "docker-compose-v2"); err != nil {
		t.Fatalf("RenderAtomic: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rendered compose: %v", err)
	}
	if err := RenderAtomic(doc, path, "docker", "docker-compose-v2"); err != nil {
		t.Fatalf("RenderAtomic (second): %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading re-rendered compose: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected byte-identical output across regenerations")
	}
}
