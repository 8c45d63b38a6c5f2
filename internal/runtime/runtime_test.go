package runtime

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func withSeams(t *testing.T, lookPath func(string) (string, error), run func(string, ...string) (string, error)) {
	t.Helper()
	origLookPath, origRun, origDial, origOS := lookPathFn, runCommandFn, dialTimeoutFn, osReleaseFn
	lookPathFn = lookPath
	runCommandFn = run
	dialTimeoutFn = func(string, string, time.Duration) (net.Conn, error) { return nil, errors.New("unreachable") }
	osReleaseFn = func() string { return "" }
	t.Cleanup(func() {
		lookPathFn, runCommandFn, dialTimeoutFn, osReleaseFn = origLookPath, origRun, origDial, origOS
	})
}

func TestDetectSelectsFirstViableInPreferenceOrder(t *testing.T) {
	withSeams(t,
		func(bin string) (string, error) {
			if bin == "podman" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + bin, nil
		},
		func(bin string, args ...string) (string, error) {
			return "Docker Compose version v2.29.0", nil
		},
	)
	d := New()
	caps, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if caps.ComposeImpl != ImplDockerV2 {
		t.Fatalf("expected docker-compose-v2, got %s", caps.ComposeImpl)
	}
	if !caps.Secrets || !caps.Healthcheck || !caps.Profiles {
		t.Fatalf("docker compose v2 should have all three capabilities set: %+v", caps)
	}
}

func TestDetectFailsWhenNothingViable(t *testing.T) {
	withSeams(t,
		func(bin string) (string, error) { return "", errors.New("not found") },
		func(bin string, args ...string) (string, error) { return "", errors.New("unreachable") },
	)
	d := New()
	if _, err := d.Detect(context.Background()); err == nil {
		t.Fatalf("expected MissingDependency error")
	}
}

func TestComposeFailsBeforeDetect(t *testing.T) {
	d := New()
	if _, err := d.Compose(context.Background(), "ps"); err == nil {
		t.Fatalf("expected NotInitialized error before Detect")
	}
}

func TestCapabilitiesFailsBeforeDetect(t *testing.T) {
	d := New()
	if _, err := d.Capabilities(); err == nil {
		t.Fatalf("expected NotInitialized error before Detect")
	}
}

func TestLegacyImplsHaveRestrictedCapabilities(t *testing.T) {
	withSeams(t,
		func(bin string) (string, error) {
			if bin == "docker" || bin == "docker-compose" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + bin, nil
		},
		func(bin string, args ...string) (string, error) {
			if bin == "podman" && len(args) > 0 && args[0] == "compose" {
				return "", errors.New("unknown command \"compose\"")
			}
			if bin == "podman" && len(args) > 0 && args[0] == "info" {
				return "ok", nil
			}
			if bin == "podman-compose" {
				return "podman-compose version 1.0.6", nil
			}
			return "", errors.New("unreachable")
		},
	)
	d := New()
	caps, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if caps.ComposeImpl != ImplPodmanPy {
		t.Fatalf("expected podman-compose-py, got %s", caps.ComposeImpl)
	}
	if caps.Secrets || caps.Profiles {
		t.Fatalf("podman-compose (py) must not have secrets/profiles: %+v", caps)
	}
	if !caps.Healthcheck {
		t.Fatalf("podman-compose (py) should still have healthcheck")
	}
}
