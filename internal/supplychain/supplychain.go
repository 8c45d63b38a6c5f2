// Package supplychain implements the Supply-Chain Validator (C5):
// enforces digest-pinning on critical images under enforcing deployment
// modes, and only advises in development mode.
//
// Grounded on the teacher's plaintext-secret guardrail
// (paas_guardrails.go's isPaasSecretLikeKey / isPaasPlaintextSecretValue
// pattern-matching pair), generalized here from "does this look like a
// secret" to "does this image reference look unpinned".
package supplychain

import (
	"regexp"
	"sort"
	"strings"

	"splunkctl/internal/compose"
	"splunkctl/internal/config"
)

// Violation is one unpinned critical image. Validate reports it in every
// mode; only in an enforcing mode does it block the pipeline.
type Violation struct {
	Service string
	Image   string
	Reason  string
}

var enforcingModes = map[string]bool{
	"production":  true,
	"prod":        true,
	"air-gapped":  true,
	"secure":      true,
	"enterprise":  true,
}

var criticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^splunk/`),
	regexp.MustCompile(`^prom/`),
	regexp.MustCompile(`^grafana/`),
	regexp.MustCompile(`^redis:`),
	regexp.MustCompile(`^alpine:`),
	regexp.MustCompile(`:(latest|main|master)$`),
}

func isCritical(image string) bool {
	for _, p := range criticalPatterns {
		if p.MatchString(image) {
			return true
		}
	}
	return false
}

func isDigestPinned(image string) bool {
	return strings.Contains(image, "@sha256:")
}

// Validate implements validate(manifest, compose_doc, mode) -> Ok |
// Violation[] from spec.md §4.5. It inspects the already-synthesized
// document's resolved image references directly rather than re-deriving
// them from the manifest, since Synthesize has already performed that
// resolution (and recorded a warning for any tag fallback).
func Validate(doc compose.Document, mode config.DeploymentMode) []Violation {
	var violations []Violation
	enforcing := enforcingModes[strings.ToLower(string(mode))]

	names := make([]string, 0, len(doc.Services))
	for name := range doc.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := doc.Services[name]
		if !isCritical(svc.Image) {
			continue
		}
		if isDigestPinned(svc.Image) {
			continue
		}
		reason := "critical image is not digest-pinned"
		if !enforcing {
			reason = "advisory: " + reason + " (development mode)"
		}
		violations = append(violations, Violation{Service: name, Image: svc.Image, Reason: reason})
	}

	if !enforcing {
		// Development mode never aborts; every finding above is advisory
		// only, per spec.md §4.5.
		return violations
	}
	return violations
}

// Enforcing reports whether mode requires Validate's findings to abort the
// pipeline before any image pull or container creation.
func Enforcing(mode config.DeploymentMode) bool {
	return enforcingModes[strings.ToLower(string(mode))]
}

