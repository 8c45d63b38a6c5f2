package main

import (
	"os"
	"testing"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
)

func TestResolveComposeVarsUsesDefaultWhenUnset(t *testing.T) {
	_ = os.Unsetenv("PROJECT")
	got := resolveComposeVars("${PROJECT:-myapp}-app", os.Getenv)
	if got != "myapp-app" {
		t.Fatalf("got %q, want myapp-app", got)
	}
}

func TestResolveComposeVarsPrefersEnv(t *testing.T) {
	t.Setenv("PROJECT", "fromenv")
	got := resolveComposeVars("${PROJECT:-myapp}-app", os.Getenv)
	if got != "fromenv-app" {
		t.Fatalf("got %q, want fromenv-app", got)
	}
}

func TestHostPortOfParsesHostContainerMapping(t *testing.T) {
	svc := compose.Service{Ports: []string{"8080:8080"}}
	host, ok := hostPortOf(svc)
	if !ok || host != "8080" {
		t.Fatalf("got %q, %v", host, ok)
	}
}

func TestHostPortOfReportsNoneWhenUnmapped(t *testing.T) {
	svc := compose.Service{}
	if _, ok := hostPortOf(svc); ok {
		t.Fatalf("expected no host port")
	}
}

func TestBuildServiceSpecsAppliesSplunkGrace(t *testing.T) {
	doc := compose.Document{
		Services: map[string]compose.Service{
			"redis":       {ContainerName: "proj-redis"},
			"splunk_idx1": {ContainerName: "proj-splunk-idx1"},
		},
	}
	specs := buildServiceSpecs(config.Defaults(), doc)
	byName := map[string]bool{}
	for _, s := range specs {
		byName[s.Name] = s.SplunkGrace > 0
	}
	if byName["splunk_idx1"] != true {
		t.Fatalf("expected splunk service to carry a boot grace")
	}
	if byName["redis"] {
		t.Fatalf("expected redis to have no boot grace")
	}
}
