package bundle

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// VerifyChecksum confirms archivePath matches the "<sha256>  <basename>"
// line in its ".sha256" sidecar, the first step of spec.md §4.9's
// consumer-side verification path.
func VerifyChecksum(archivePath string) error {
	sidecar := archivePath + ".sha256"
	want, err := os.ReadFile(filepath.Clean(sidecar))
	if err != nil {
		return fmt.Errorf("reading checksum sidecar: %w", err)
	}
	fields := strings.Fields(string(want))
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum sidecar %s", sidecar)
	}
	wantSum := fields[0]

	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	gotSum := hex.EncodeToString(h.Sum(nil))
	if gotSum != wantSum {
		return fmt.Errorf("checksum mismatch for %s: want %s, got %s", archivePath, wantSum, gotSum)
	}
	return nil
}

// Extract unpacks a bundle tar.gz into destDir, rejecting any entry that
// would escape destDir (symlinks, `..` traversal, absolute paths).
// Grounded directly on pluginmarket.go's extractTarball/
// secureArchiveTargetPath pair, generalized from a plugin archive to a
// deployment bundle.
func Extract(archivePath, destDir string) error {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening bundle as gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		target, err := secureBundleTargetPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink, tar.TypeLink:
			return fmt.Errorf("bundle archive contains unsupported link entry: %s", hdr.Name)
		default:
			return fmt.Errorf("bundle archive contains unsupported entry type for %s", hdr.Name)
		}
	}
}

func secureBundleTargetPath(destDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("archive entry name is empty")
	}
	cleanName := filepath.Clean(name)
	if cleanName == "." || cleanName == ".." || strings.HasPrefix(cleanName, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanName) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	target := filepath.Join(destDir, cleanName)
	rel, err := filepath.Rel(filepath.Clean(destDir), filepath.Clean(target))
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

// VerifyImagesArchive reports whether the images archive found under
// bundleDir still matches its own sidecar checksum, the second check in
// the consumer-side path before `docker load`/`podman load`.
func VerifyImagesArchive(bundleDir string) (string, error) {
	for _, name := range []string{"images.tar.gz", "images.tar.zst", "images.tar"} {
		path := filepath.Join(bundleDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, VerifyChecksum(path)
		}
	}
	return "", fmt.Errorf("no images archive found under %s", bundleDir)
}
