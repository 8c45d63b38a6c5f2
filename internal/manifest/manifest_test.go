package manifest

import "testing"

const sampleManifest = `# versions manifest
export SPLUNK_REPO=splunk/splunk
SPLUNK_DIGEST=sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
SPLUNK_VERSION="9.2.1"

REDIS_REPO='redis'
REDIS_DIGEST=sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb

PROMETHEUS_REPO=prom/prometheus
PROMETHEUS_VERSION=v2.53.0
`

func TestLoadAndVerify(t *testing.T) {
	m, err := Load([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	img, ok := m.Image("SPLUNK")
	if !ok {
		t.Fatalf("expected SPLUNK image")
	}
	if img.Repo != "splunk/splunk" || img.Version != "9.2.1" {
		t.Fatalf("unexpected image %+v", img)
	}
	if failing := m.Verify(); len(failing) != 0 {
		t.Fatalf("unexpected verify failures: %v", failing)
	}
}

func TestLoadInvalidDigest(t *testing.T) {
	m, err := Load([]byte("BAD_REPO=x\nBAD_DIGEST=sha256:nothex\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	failing := m.Verify()
	if len(failing) != 1 || failing[0] != "BAD.DIGEST" {
		t.Fatalf("expected BAD.DIGEST failure, got %v", failing)
	}
}

func TestImageRefPrefersDigest(t *testing.T) {
	res, err := ImageRef("redis", "sha256:"+hex64('b'), "7.2")
	if err != nil {
		t.Fatalf("ImageRef: %v", err)
	}
	if res.UsedTag {
		t.Fatalf("expected digest form, got tag fallback")
	}
	want := "redis@sha256:" + hex64('b')
	if res.Ref != want {
		t.Fatalf("got %q want %q", res.Ref, want)
	}
}

func TestImageRefFallsBackToTagWithWarning(t *testing.T) {
	res, err := ImageRef("prom/prometheus", "", "v2.53.0")
	if err != nil {
		t.Fatalf("ImageRef: %v", err)
	}
	if !res.UsedTag {
		t.Fatalf("expected tag fallback flagged")
	}
	if res.Ref != "prom/prometheus:v2.53.0" {
		t.Fatalf("got %q", res.Ref)
	}
}

func TestImageRefFailsWithNeither(t *testing.T) {
	if _, err := ImageRef("redis", "", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInterpolation(t *testing.T) {
	data := "BASE_REGISTRY=registry.example.com\nAPP_REPO=${BASE_REGISTRY}/app\n"
	m, err := Load([]byte(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, ok := m.Raw("APP_REPO")
	if !ok || v != "registry.example.com/app" {
		t.Fatalf("interpolation failed, got %q ok=%v", v, ok)
	}
}

func hex64(b byte) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = b
	}
	return string(out)
}
