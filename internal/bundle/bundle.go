// Package bundle implements the Air-Gapped Bundler (C9): bundle(manifest,
// config, out_dir, archive_name, compression) -> archive_path + sha256,
// producing a self-contained distributable for offline deployment.
//
// Grounded on self_go_bootstrap.go's download/verify/extract trio
// (httpDownloadToFile, fileSHA256Hex, extractGoTarGz) for the
// hash-then-archive shape, generalized from "fetch and unpack a Go
// toolchain" to "assemble and pack a deployment bundle", and on
// internal/pluginmarket's extractTarball/secureArchiveTargetPath for the
// consumer-side extraction path's path-traversal guard.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"splunkctl/internal/config"
	"splunkctl/internal/manifest"

	"github.com/klauspost/compress/zstd"
)

// Compression selects the codec for the inner images archive; spec.md
// §4.9 leaves the choice open between gzip and zstd.
type Compression string

const (
	Gzip Compression = "gz"
	Zstd Compression = "zst"
)

// Options configures one bundle run.
type Options struct {
	Manifest      *manifest.Manifest
	ManifestRaw   []byte // the versions manifest's own source bytes, snapshotted verbatim
	Config        config.EffectiveConfig
	ComposePath   string
	OutDir        string
	ArchiveName   string
	Compression   Compression
	RuntimeBinary string // "docker" or "podman", used to `save` images
	PinnedTime    time.Time
}

// bundleManifest is the bundle's own manifest.json: which project it was
// built for plus the resolved image references it carries.
type bundleManifest struct {
	ProjectName string       `json:"project_name"`
	Images      []imageEntry `json:"images"`
}

// imageEntry is one row of the bundle's manifest.json.
type imageEntry struct {
	Key string `json:"key"`
	Ref string `json:"ref"`
}

var runSaveFn = runImageSave

// Bundle assembles out_dir with images archive + manifest.json + a
// versions-manifest snapshot + a boot script + the rendered compose file,
// then wraps out_dir into a single compressed tar (deterministic uid/gid
// 0/0 and a pinned mtime when PinnedTime is set), alongside a sibling
// .sha256 file. It returns the archive path and the path to its checksum
// sidecar.
func Bundle(opts Options) (archivePath, sha256Path string, err error) {
	if opts.ArchiveName == "" {
		opts.ArchiveName = "bundle.tar.gz"
	}
	if opts.Compression == "" {
		opts.Compression = Gzip
	}
	if opts.RuntimeBinary == "" {
		opts.RuntimeBinary = "docker"
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating bundle output dir: %w", err)
	}

	refs, entries, err := resolveImages(opts.Manifest)
	if err != nil {
		return "", "", err
	}

	imagesTarPath := filepath.Join(opts.OutDir, "images.tar")
	if err := runSaveFn(opts.RuntimeBinary, refs, imagesTarPath); err != nil {
		return "", "", fmt.Errorf("saving images: %w", err)
	}
	finalImagesPath, err := compressImages(imagesTarPath, opts.Compression)
	if err != nil {
		return "", "", err
	}
	if _, err := writeSHA256Sidecar(finalImagesPath); err != nil {
		return "", "", err
	}

	if err := writeManifestJSON(filepath.Join(opts.OutDir, "manifest.json"), opts.Config.ProjectName, entries); err != nil {
		return "", "", err
	}

	if len(opts.ManifestRaw) > 0 {
		if err := os.WriteFile(filepath.Join(opts.OutDir, "versions.manifest"), opts.ManifestRaw, 0o644); err != nil {
			return "", "", fmt.Errorf("writing versions manifest snapshot: %w", err)
		}
	}

	if opts.ComposePath != "" {
		if err := copyFile(opts.ComposePath, filepath.Join(opts.OutDir, filepath.Base(opts.ComposePath))); err != nil {
			return "", "", fmt.Errorf("copying compose file into bundle: %w", err)
		}
	}

	if err := writeBootScript(filepath.Join(opts.OutDir, "boot.sh"), filepath.Base(finalImagesPath), filepath.Base(opts.ComposePath)); err != nil {
		return "", "", err
	}

	archivePath = filepath.Join(filepath.Dir(opts.OutDir), opts.ArchiveName)
	if err := packDirectory(opts.OutDir, archivePath, opts.PinnedTime); err != nil {
		return "", "", err
	}
	sha256Path, err = writeSHA256Sidecar(archivePath)
	if err != nil {
		return "", "", err
	}
	return archivePath, sha256Path, nil
}

func resolveImages(m *manifest.Manifest) ([]string, []imageEntry, error) {
	keys := m.Keys()
	refs := make([]string, 0, len(keys))
	entries := make([]imageEntry, 0, len(keys))
	for _, key := range keys {
		res, err := m.Ref(key)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving image %s: %w", key, err)
		}
		refs = append(refs, res.Ref)
		entries = append(entries, imageEntry{Key: key, Ref: res.Ref})
	}
	return refs, entries, nil
}

// runImageSave shells out to `<runtime> save -o dest ref...`, the same
// invocation shape whether the runtime is docker or podman (both speak
// this flag identically).
func runImageSave(runtimeBinary string, refs []string, dest string) error {
	if len(refs) == 0 {
		return fmt.Errorf("no images to save")
	}
	args := append([]string{"save", "-o", dest}, refs...)
	// #nosec G204 -- runtimeBinary and refs come from resolved config/manifest, not untrusted input.
	cmd := exec.Command(runtimeBinary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s save failed: %w: %s", runtimeBinary, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func compressImages(tarPath string, compression Compression) (string, error) {
	switch compression {
	case Zstd:
		return compressWith(tarPath, tarPath+".zst", func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	default:
		return compressWith(tarPath, tarPath+".gz", func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	}
}

func compressWith(srcPath, destPath string, newWriter func(io.Writer) (io.WriteCloser, error)) (string, error) {
	src, err := os.Open(filepath.Clean(srcPath))
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	enc, err := newWriter(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	_ = os.Remove(srcPath)
	return destPath, nil
}

func writeSHA256Sidecar(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sidecar := path + ".sha256"
	sum := hex.EncodeToString(h.Sum(nil)) + "  " + filepath.Base(path) + "\n"
	if err := os.WriteFile(sidecar, []byte(sum), 0o644); err != nil {
		return "", err
	}
	return sidecar, nil
}

func writeManifestJSON(path, projectName string, entries []imageEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	body, err := json.MarshalIndent(bundleManifest{ProjectName: projectName, Images: entries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

func writeBootScript(path, imagesArchiveName, composeName string) error {
	script := fmt.Sprintf(`#!/bin/sh
set -e
sha256sum -c "%s.sha256"
docker load -i "%s" || podman load -i "%s"
docker compose -f "%s" up -d || podman compose -f "%s" up -d
`, imagesArchiveName, imagesArchiveName, imagesArchiveName, composeName, composeName)
	return os.WriteFile(path, []byte(script), 0o755)
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
