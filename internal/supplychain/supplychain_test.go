package supplychain

import (
	"testing"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
)

func docWith(image string) compose.Document {
	return compose.Document{Services: map[string]compose.Service{"app": {Image: image}}}
}

func TestValidateEnforcesInProductionMode(t *testing.T) {
	v := Validate(docWith("redis:7.2"), config.DeploymentProduction)
	if len(v) != 1 {
		t.Fatalf("expected one violation, got %v", v)
	}
}

func TestValidateAllowsDigestPinnedInProduction(t *testing.T) {
	v := Validate(docWith("redis@sha256:"+hexString('a', 64)), config.DeploymentProduction)
	if len(v) != 0 {
		t.Fatalf("expected no violations for digest-pinned image, got %v", v)
	}
}

func TestValidateOnlyAdvisoryInDevelopment(t *testing.T) {
	v := Validate(docWith("redis:7.2"), config.DeploymentDevelopment)
	if len(v) != 1 {
		t.Fatalf("expected an advisory finding, got %v", v)
	}
	if Enforcing(config.DeploymentDevelopment) {
		t.Fatalf("development mode must not be enforcing")
	}
}

func TestValidateIgnoresNonCriticalUnpinnedImages(t *testing.T) {
	v := Validate(docWith("my-org/my-app:v1"), config.DeploymentProduction)
	if len(v) != 0 {
		t.Fatalf("expected no violations for a non-critical image, got %v", v)
	}
}

func TestEnforcingModes(t *testing.T) {
	for _, mode := range []config.DeploymentMode{config.DeploymentProduction, config.DeploymentAirGapped, config.DeploymentSecure} {
		if !Enforcing(mode) {
			t.Fatalf("%s should be enforcing", mode)
		}
	}
	if !Enforcing("enterprise") {
		t.Fatalf("enterprise should be enforcing")
	}
}

func hexString(c byte, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = c
	}
	return string(out)
}
