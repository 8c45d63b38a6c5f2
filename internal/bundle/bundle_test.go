package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splunkctl/internal/config"
	"splunkctl/internal/manifest"
)

const testManifest = `APP_REPO=my-org/my-app
APP_DIGEST=sha256:` + strings.Repeat("a", 64) + `
REDIS_REPO=redis
REDIS_DIGEST=sha256:` + strings.Repeat("b", 64) + `
`

func mustManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load([]byte(testManifest))
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	return m
}

func withFakeSave(t *testing.T) {
	t.Helper()
	restore := runSaveFn
	runSaveFn = func(runtimeBinary string, refs []string, dest string) error {
		return os.WriteFile(dest, []byte("fake tar contents for "+strings.Join(refs, ",")), 0o644)
	}
	t.Cleanup(func() { runSaveFn = restore })
}

func TestBundleProducesArchiveAndChecksum(t *testing.T) {
	withFakeSave(t)

	dir := t.TempDir()
	composePath := filepath.Join(dir, "compose.yaml")
	if err := os.WriteFile(composePath, []byte("services: {}\n"), 0o644); err != nil {
		t.Fatalf("writing stub compose: %v", err)
	}
	outDir := filepath.Join(dir, "out", "bundle-1")

	archivePath, sha256Path, err := Bundle(Options{
		Manifest:    mustManifest(t),
		Config:      config.Defaults(),
		ComposePath: composePath,
		OutDir:      outDir,
		ArchiveName: "bundle-1.tar.gz",
		Compression: Gzip,
		PinnedTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive at %s: %v", archivePath, err)
	}
	if _, err := os.Stat(sha256Path); err != nil {
		t.Fatalf("expected checksum sidecar at %s: %v", sha256Path, err)
	}
	if err := VerifyChecksum(archivePath); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
}

func TestBundleContentsRoundTripThroughExtract(t *testing.T) {
	withFakeSave(t)

	dir := t.TempDir()
	composePath := filepath.Join(dir, "compose.yaml")
	_ = os.WriteFile(composePath, []byte("services: {}\n"), 0o644)
	outDir := filepath.Join(dir, "out", "bundle-2")

	archivePath, _, err := Bundle(Options{
		Manifest:    mustManifest(t),
		Config:      config.Defaults(),
		ComposePath: composePath,
		OutDir:      outDir,
		ArchiveName: "bundle-2.tar.gz",
		Compression: Gzip,
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	extractDir := filepath.Join(dir, "extracted")
	if err := Extract(archivePath, extractDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	bundleDir := filepath.Join(extractDir, "bundle-2")
	if _, err := os.Stat(filepath.Join(bundleDir, "manifest.json")); err != nil {
		t.Fatalf("expected manifest.json in extracted bundle: %v", err)
	}
	imagesPath, err := VerifyImagesArchive(bundleDir)
	if err != nil {
		t.Fatalf("VerifyImagesArchive: %v", err)
	}
	if filepath.Base(imagesPath) != "images.tar.gz" {
		t.Fatalf("expected images.tar.gz, got %s", imagesPath)
	}
}

func TestBundleWithZstdCompression(t *testing.T) {
	withFakeSave(t)

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out", "bundle-3")
	archivePath, _, err := Bundle(Options{
		Manifest:    mustManifest(t),
		Config:      config.Defaults(),
		OutDir:      outDir,
		ArchiveName: "bundle-3.tar.gz",
		Compression: Zstd,
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	extractDir := filepath.Join(dir, "extracted-zst")
	if err := Extract(archivePath, extractDir); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(extractDir, "bundle-3", "images.tar.zst")); err != nil {
		t.Fatalf("expected images.tar.zst in extracted bundle: %v", err)
	}
}

func TestVerifyChecksumDetectsTampering(t *testing.T) {
	withFakeSave(t)

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out", "bundle-4")
	archivePath, _, err := Bundle(Options{
		Manifest:    mustManifest(t),
		Config:      config.Defaults(),
		OutDir:      outDir,
		ArchiveName: "bundle-4.tar.gz",
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if err := os.WriteFile(archivePath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering with archive: %v", err)
	}
	if err := VerifyChecksum(archivePath); err == nil {
		t.Fatalf("expected checksum mismatch to be detected")
	}
}

func TestSecureBundleTargetPathRejectsTraversal(t *testing.T) {
	if _, err := secureBundleTargetPath("/dest", "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := secureBundleTargetPath("/dest", "/etc/passwd"); err == nil {
		t.Fatalf("expected absolute path to be rejected")
	}
}
