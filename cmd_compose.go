package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
	"splunkctl/internal/errs"
	"splunkctl/internal/manifest"
	ctrruntime "splunkctl/internal/runtime"
)

const composeUsageText = `usage: splunkctl compose print [--config FILE] [--manifest FILE] [--help]

Synthesizes the compose document from the resolved configuration and the
detected runtime's capabilities, and prints it to stdout without writing
or applying it.`

// cmdCompose implements "compose print": a read-only render of C6's output,
// useful for inspecting what orchestrate would write before running it.
func cmdCompose(args []string) {
	if len(args) == 0 || (args[0] != "print") {
		printUsage(composeUsageText)
		return
	}
	rest := args[1:]
	manifestPath := "versions.manifest"
	filtered := rest[:0:0]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-h", "--help":
			printUsage(composeUsageText)
			return
		case "--manifest":
			if i+1 < len(rest) {
				manifestPath = rest[i+1]
				i++
				continue
			}
		default:
			filtered = append(filtered, rest[i])
		}
	}

	cfg, warnings, err := config.Resolve(config.Source{Getenv: os.Getenv, Args: filtered})
	if err != nil {
		fatal(err)
	}
	for _, w := range warnings {
		warnf("%s: %s", w.Field, w.Message)
	}

	raw, err := readLocalFile(manifestPath)
	if err != nil {
		fatal(errs.Wrap(errs.InvalidInput, "compose.print", err))
	}
	m, err := manifest.Load(raw)
	if err != nil {
		fatal(errs.Wrap(errs.InvalidInput, "compose.print", err))
	}

	det := ctrruntime.New()
	caps, err := det.Detect(context.Background())
	if err != nil {
		fatal(err)
	}

	doc, synthWarnings, err := compose.Synthesize(cfg, caps, m)
	if err != nil {
		fatal(err)
	}
	for _, w := range synthWarnings {
		warnf("%s: %s", w.Field, w.Message)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		fatal(errs.Wrap(errs.SynthesisFailed, "compose.print", err))
	}
	fmt.Print(string(out))
}
