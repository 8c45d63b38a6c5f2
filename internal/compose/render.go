package compose

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const schemaVersion = "1"

// nowFn is a seam so tests can pin the timestamp header for a
// byte-for-byte determinism check on everything below it.
var nowFn = time.Now

// RenderAtomic writes doc to path as spec.md §4.6 requires: a metadata
// header followed by the YAML body, written to a sibling temp file in the
// same directory (guaranteeing a same-filesystem rename) and renamed over
// the target. Grounded on the teacher's
// writePaasResolvedComposeTempFile (os.CreateTemp + write + close), with
// the temp file placed in the destination directory instead of the OS
// tmpdir so the final rename is atomic, and a rename step added that the
// teacher's version — which only produces a throwaway file passed to
// `docker compose -f` — never needed.
func RenderAtomic(doc Document, path string, runtimeName, composeImpl string) error {
	body, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling compose document: %w", err)
	}

	header := fmt.Sprintf(
		"# generated by splunkctl compose synthesizer\n# generated_at: %s\n# runtime: %s\n# compose_impl: %s\n# schema_version: %s\n",
		nowFn().UTC().Format(time.RFC3339), runtimeName, composeImpl, schemaVersion,
	)

	var out bytes.Buffer
	out.WriteString(header)
	out.Write(body)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".compose-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp compose file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(out.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp compose file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp compose file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp compose file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp compose file into place: %w", err)
	}
	return nil
}
