package main

import (
	"context"
	"fmt"
	"os"

	"splunkctl/internal/config"
	"splunkctl/internal/preflight"
	ctrruntime "splunkctl/internal/runtime"
)

const doctorUsageText = `usage: splunkctl doctor [--config FILE] [--port N] [--with-splunk] [--help]

Runs runtime/capability detection and host preflight, then prints the
report without touching the filesystem or starting anything.`

// cmdDoctor surfaces C3 (Runtime & Capability Detector) and C4 (Host
// Preflight) standalone, for an operator to check a host before running
// orchestrate for real.
func cmdDoctor(args []string) {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			printUsage(doctorUsageText)
			return
		}
	}

	cfg, warnings, err := config.Resolve(config.Source{Getenv: os.Getenv, Args: args})
	if err != nil {
		fatal(err)
	}
	for _, w := range warnings {
		warnf("%s: %s", w.Field, w.Message)
	}

	det := ctrruntime.New()
	caps, err := det.Detect(context.Background())
	if err != nil {
		fatal(err)
	}

	fmt.Printf("%s: %s (%s)\n", styleHeading("runtime"), caps.Runtime, caps.ComposeImpl)
	fmt.Printf("%s: secrets=%v healthcheck=%v profiles=%v buildkit=%v rootless=%v air-gapped=%v network=%s\n",
		styleHeading("capabilities"), caps.Secrets, caps.Healthcheck, caps.Profiles, caps.Buildkit, caps.Rootless, caps.AirGapped, caps.NetworkBackend)

	report := preflight.Run(cfg, caps)
	if report.Ok() {
		fmt.Println(styleSuccess("preflight: ok"))
		return
	}
	fmt.Println(styleWarn("preflight: issues found"))
	for _, reason := range report.Reasons {
		fmt.Println("  - " + reason)
	}
}
