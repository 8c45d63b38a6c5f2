package bundle

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"time"
)

// packDirectory tars + gzips srcDir into destPath, with srcDir's own base
// name as the single top-level entry (spec.md §4.9: "contains the out_dir
// at the top level"). When pinned is non-zero every header's timestamps
// and uid/gid are pinned to 0/epoch-or-pinned, the deterministic-build
// convention spec.md §4.9 names ("when tar supports --owner=0 --group=0,
// use deterministic uid/gid; timestamps from a pinned source").
func packDirectory(srcDir, destPath string, pinned time.Time) error {
	out, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	parent := filepath.Dir(srcDir)

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if !pinned.IsZero() {
			hdr.Uid, hdr.Gid = 0, 0
			hdr.Uname, hdr.Gname = "", ""
			hdr.ModTime, hdr.AccessTime, hdr.ChangeTime = pinned, pinned, pinned
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
