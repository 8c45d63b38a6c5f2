package compose

import (
	"fmt"

	"splunkctl/internal/config"
	"splunkctl/internal/errs"
	"splunkctl/internal/manifest"
	"splunkctl/internal/runtime"
)

// Warning mirrors config.Warning's shape for synthesis-time advisories
// (e.g. a digest fallback to a mutable tag).
type Warning struct {
	Field   string
	Message string
}

// Synthesize implements synthesize(EffectiveConfig, Capabilities,
// VersionsManifest) -> ComposeDocument from spec.md §4.6.
func Synthesize(cfg config.EffectiveConfig, caps runtime.Capabilities, m *manifest.Manifest) (Document, []Warning, error) {
	doc := Document{
		Services: map[string]Service{},
		Networks: map[string]Network{"app-net": {Driver: "bridge"}},
		Volumes:  map[string]Volume{},
	}
	var warnings []Warning

	resolve := func(key string) (string, error) {
		res, err := m.Ref(key)
		if err != nil {
			return "", errs.Wrap(errs.SynthesisFailed, "compose.image_ref", err)
		}
		if res.UsedTag {
			warnings = append(warnings, Warning{Field: key, Message: fmt.Sprintf("%s has no pinned digest; falling back to mutable tag %q", key, res.Ref)})
		}
		return res.Ref, nil
	}

	appImage, err := resolve("APP")
	if err != nil {
		return Document{}, nil, err
	}
	redisImage, err := resolve("REDIS")
	if err != nil {
		return Document{}, nil, err
	}

	doc.Services["app"] = appService(cfg, appImage, caps)
	doc.Services["redis"] = redisService(redisImage, caps)
	doc.Volumes["app-data"] = Volume{}
	doc.Volumes["app-logs"] = Volume{}
	doc.Volumes["redis-data"] = Volume{}

	if cfg.EnableSplunk {
		doc.Networks["splunk-net"] = Network{Driver: "bridge"}

		splunkImage, err := resolve("SPLUNK")
		if err != nil {
			return Document{}, nil, err
		}

		multiNode := cfg.IndexerCount > 1 || cfg.SearchHeadCount > 1
		if multiNode {
			doc.Services["splunk_cm"] = splunkClusterMasterService(cfg, splunkImage, caps)
		}

		for i := 1; i <= cfg.IndexerCount; i++ {
			name := fmt.Sprintf("splunk_idx%d", i)
			doc.Services[name] = splunkIndexerService(cfg, splunkImage, caps, i, multiNode)
			doc.Volumes[fmt.Sprintf("splunk-idx%d-etc", i)] = Volume{}
			doc.Volumes[fmt.Sprintf("splunk-idx%d-var", i)] = Volume{}
		}
		for i := 1; i <= cfg.SearchHeadCount; i++ {
			name := fmt.Sprintf("splunk_sh%d", i)
			doc.Services[name] = splunkSearchHeadService(cfg, splunkImage, caps, i, multiNode)
			doc.Volumes[fmt.Sprintf("splunk-sh%d-etc", i)] = Volume{}
			doc.Volumes[fmt.Sprintf("splunk-sh%d-var", i)] = Volume{}
		}
	}

	if cfg.EnableMonitoring {
		promImage, err := resolve("PROMETHEUS")
		if err != nil {
			return Document{}, nil, err
		}
		grafanaImage, err := resolve("GRAFANA")
		if err != nil {
			return Document{}, nil, err
		}
		prom := monitoringService(promImage, []string{"app-net"}, cfg.EnableSplunk, "9090:9090", caps)
		grafana := monitoringService(grafanaImage, []string{"app-net"}, cfg.EnableSplunk, "3000:3000", caps)
		if caps.Healthcheck && cfg.EnableHealthchecks {
			prom.Healthcheck = &Healthcheck{
				Test:     []string{"CMD", "wget", "-qO-", "http://localhost:9090/-/healthy"},
				Interval: "15s",
				Timeout:  "5s",
				Retries:  5,
			}
		}
		if caps.Healthcheck {
			grafana.DependsOn = map[string]DependsOn{
				"prometheus": {Condition: "service_healthy"},
			}
		}
		doc.Services["prometheus"] = prom
		doc.Services["grafana"] = grafana
		doc.Volumes["grafana-data"] = Volume{}
	}

	if caps.Secrets && cfg.EnableSecrets {
		doc.Secrets = map[string]Secret{
			"splunk_admin_password": {File: "${STATE_DIR}/secrets/splunk_admin_password"},
		}
	}

	return doc, warnings, nil
}

func appService(cfg config.EffectiveConfig, image string, caps runtime.Capabilities) Service {
	svc := Service{
		Image:         image,
		ContainerName: "${PROJECT:-" + cfg.ProjectName + "}-app",
		Ports:         []string{fmt.Sprintf("%d:%d", cfg.AppPort, cfg.AppPort)},
		Environment: map[string]string{
			"LOG_LEVEL": "${LOG_LEVEL:-" + string(cfg.LogLevel) + "}",
		},
		Volumes:  []string{"app-data:/data", "app-logs:/var/log/app"},
		Networks: []string{"app-net"},
		DependsOn: map[string]DependsOn{
			"redis": {Condition: dependsOnCondition(caps)},
		},
	}
	if rl, ok := cfg.ResourceLimits["app"]; ok {
		svc.Deploy = deployFor(rl)
	}
	if caps.Healthcheck && cfg.EnableHealthchecks {
		svc.Healthcheck = &Healthcheck{
			Test:     []string{"CMD", "curl", "-f", fmt.Sprintf("http://localhost:%d/healthz", cfg.AppPort)},
			Interval: "10s",
			Timeout:  "5s",
			Retries:  5,
		}
	}
	return svc
}

func dependsOnCondition(caps runtime.Capabilities) string {
	if caps.Healthcheck {
		return "service_healthy"
	}
	return "service_started"
}

func redisService(image string, caps runtime.Capabilities) Service {
	svc := Service{
		Image:    image,
		Volumes:  []string{"redis-data:/data"},
		Networks: []string{"app-net"},
	}
	if caps.Healthcheck {
		svc.Healthcheck = &Healthcheck{
			Test:     []string{"CMD", "redis-cli", "ping"},
			Interval: "10s",
			Timeout:  "3s",
			Retries:  5,
		}
	}
	return svc
}

func splunkClusterMasterService(cfg config.EffectiveConfig, image string, caps runtime.Capabilities) Service {
	svc := Service{
		Image:    image,
		Networks: []string{"splunk-net"},
		Environment: map[string]string{
			"SPLUNK_ROLE":           "splunk_cluster_master",
			"SPLUNK_PASSWORD":       "${SPLUNK_PASSWORD:?splunk admin password required}",
			"SPLUNK_START_ARGS":     "--accept-license",
			"SPLUNK_CLUSTER_MASTER_URL": "https://splunk_cm:8089",
		},
	}
	if caps.Profiles {
		svc.Profiles = []string{"splunk"}
	}
	return svc
}

func splunkIndexerService(cfg config.EffectiveConfig, image string, caps runtime.Capabilities, i int, hasMaster bool) Service {
	s2s := 9997 + i - 1
	hec := 8088 + i - 1
	svc := Service{
		Image: image,
		Ports: []string{
			fmt.Sprintf("%d:%d", s2s, s2s),
			fmt.Sprintf("%d:%d", hec, hec),
		},
		Environment: map[string]string{
			"SPLUNK_ROLE":     "splunk_indexer",
			"SPLUNK_PASSWORD": "${SPLUNK_PASSWORD:?splunk admin password required}",
		},
		Volumes:  []string{fmt.Sprintf("splunk-idx%d-etc:/opt/splunk/etc", i), fmt.Sprintf("splunk-idx%d-var:/opt/splunk/var", i)},
		Networks: []string{"splunk-net"},
	}
	if hasMaster {
		svc.Environment["SPLUNK_CLUSTER_MASTER_URL"] = "https://splunk_cm:8089"
		svc.DependsOn = map[string]DependsOn{"splunk_cm": {Condition: dependsOnCondition(caps)}}
	}
	if caps.Healthcheck && cfg.EnableHealthchecks {
		svc.Healthcheck = &Healthcheck{
			Test:     []string{"CMD", "curl", "-fk", "https://localhost:8089/services/server/health/splunkd/details"},
			Interval: "30s",
			Timeout:  "10s",
			Retries:  10,
		}
	}
	if caps.Profiles {
		svc.Profiles = []string{"splunk"}
	}
	return svc
}

func splunkSearchHeadService(cfg config.EffectiveConfig, image string, caps runtime.Capabilities, i int, hasMaster bool) Service {
	web := 8000 + i - 1
	mgmt := 8089 + i + 9
	svc := Service{
		Image: image,
		Ports: []string{
			fmt.Sprintf("%d:%d", web, web),
			fmt.Sprintf("%d:%d", mgmt, 8089),
		},
		Environment: map[string]string{
			"SPLUNK_ROLE":     "splunk_search_head",
			"SPLUNK_PASSWORD": "${SPLUNK_PASSWORD:?splunk admin password required}",
		},
		Volumes:  []string{fmt.Sprintf("splunk-sh%d-etc:/opt/splunk/etc", i), fmt.Sprintf("splunk-sh%d-var:/opt/splunk/var", i)},
		Networks: []string{"splunk-net"},
	}
	if hasMaster {
		svc.Environment["SPLUNK_CLUSTER_MASTER_URL"] = "https://splunk_cm:8089"
		svc.DependsOn = map[string]DependsOn{"splunk_cm": {Condition: dependsOnCondition(caps)}}
	}
	if caps.Healthcheck && cfg.EnableHealthchecks {
		svc.Healthcheck = &Healthcheck{
			Test:     []string{"CMD", "curl", "-fk", "https://localhost:8089/services/server/health/splunkd/details"},
			Interval: "30s",
			Timeout:  "10s",
			Retries:  10,
		}
	}
	if caps.Profiles {
		svc.Profiles = []string{"splunk"}
	}
	return svc
}

func monitoringService(image string, networks []string, splunkNet bool, portMapping string, caps runtime.Capabilities) Service {
	nets := networks
	if splunkNet {
		nets = append(append([]string{}, networks...), "splunk-net")
	}
	svc := Service{
		Image:    image,
		Ports:    []string{portMapping},
		Networks: nets,
	}
	if caps.Profiles {
		svc.Profiles = []string{"monitoring"}
	}
	return svc
}

func deployFor(rl config.ResourceLimit) *Deploy {
	d := &Deploy{}
	if rl.CPULimit != "" || rl.MemLimit != "" {
		d.Resources.Limits = &ResourceSpec{CPUs: rl.CPULimit, Memory: rl.MemLimit}
	}
	if rl.CPUReserve != "" || rl.MemReserve != "" {
		d.Resources.Reservations = &ResourceSpec{CPUs: rl.CPUReserve, Memory: rl.MemReserve}
	}
	return d
}
