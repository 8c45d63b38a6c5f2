package main

import (
	"flag"
	"fmt"
	"time"

	"splunkctl/internal/bundle"
	"splunkctl/internal/config"
	"splunkctl/internal/errs"
	"splunkctl/internal/manifest"
)

const bundleUsageText = `usage: splunkctl bundle [--manifest FILE] [--compose FILE] [--out-dir DIR]
  [--archive-name NAME] [--compression gz|zst] [--runtime docker|podman]
  [--project-name NAME] [--reproducible] [--help]`

// cmdBundle implements the Air-Gapped Bundler's CLI surface: resolve a
// versions manifest and a rendered compose file into a single distributable
// archive, per spec.md §4.9.
func cmdBundle(args []string) {
	fs := flag.NewFlagSet("bundle", flag.ContinueOnError)
	fs.Usage = func() {}

	var (
		manifestPath, composePath, outDir, archiveName string
		compression, runtimeBinary, projectName        string
		reproducible                                   bool
	)
	fs.StringVar(&manifestPath, "manifest", "versions.manifest", "path to the versions manifest")
	fs.StringVar(&composePath, "compose", "compose.yaml", "path to the rendered compose file")
	fs.StringVar(&outDir, "out-dir", "./bundle", "staging directory for bundle contents")
	fs.StringVar(&archiveName, "archive-name", "bundle.tar.gz", "name of the final archive")
	fs.StringVar(&compression, "compression", "gz", "gz|zst, compression for the inner images archive")
	fs.StringVar(&runtimeBinary, "runtime", "docker", "docker|podman, used to save images")
	fs.StringVar(&projectName, "project-name", "", "project name recorded in the bundle manifest")
	fs.BoolVar(&reproducible, "reproducible", false, "pin uid/gid/timestamps for a byte-reproducible archive")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage(bundleUsageText)
			return
		}
		fatal(errs.Wrap(errs.InvalidInput, "bundle.flags", err))
	}

	raw, err := readLocalFile(manifestPath)
	if err != nil {
		fatal(errs.Wrap(errs.InvalidInput, "bundle", err))
	}
	m, err := manifest.Load(raw)
	if err != nil {
		fatal(errs.Wrap(errs.InvalidInput, "bundle", err))
	}

	cfg := config.Defaults()
	if projectName != "" {
		cfg.ProjectName = projectName
	}

	opts := bundle.Options{
		Manifest:      m,
		ManifestRaw:   raw,
		Config:        cfg,
		ComposePath:   composePath,
		OutDir:        outDir,
		ArchiveName:   archiveName,
		Compression:   bundle.Compression(compression),
		RuntimeBinary: runtimeBinary,
	}
	if reproducible {
		opts.PinnedTime = time.Unix(0, 0).UTC()
	}

	archivePath, sha256Path, err := bundle.Bundle(opts)
	if err != nil {
		fatal(errs.Wrap(errs.PermanentOperation, "bundle", err))
	}
	fmt.Println(styleSuccess("bundle written") + ": " + archivePath)
	fmt.Println(styleDim("checksum: " + sha256Path))
}
