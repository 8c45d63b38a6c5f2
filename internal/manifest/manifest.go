// Package manifest loads the immutable versions table (C1): a pure K=V data
// file mapping logical image keys to repo/digest/tag triples. The line
// parser generalizes the assignment-parsing algorithm read from the
// teacher's internal/vault/dotenv.go (export-prefix strip, matched-quote
// strip, comment/blank skip, CRLF tolerance) without that package's
// encryption concerns, which belong to the out-of-scope credentials
// provider (spec.md §6).
package manifest

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	digestPattern  = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)
	semverPattern  = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+){0,2}(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)
	assignmentLine = regexp.MustCompile(`^(?:export\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)
)

// Image is one logical entry: a repo plus a digest and/or a mutable tag.
type Image struct {
	Repo    string
	Digest  string
	Version string
}

// Manifest is the immutable, loaded-once table of logical image key ->
// Image. Keys follow the convention "<NAME>_REPO", "<NAME>_DIGEST",
// "<NAME>_VERSION" (e.g. SPLUNK_REPO, SPLUNK_DIGEST, SPLUNK_VERSION).
type Manifest struct {
	raw    map[string]string
	images map[string]Image
}

// Load parses a versions.env-style file. Values may interpolate other keys
// already defined earlier in the same file via ${OTHER_KEY} for building
// compound image references; no shell evaluation ever occurs.
func Load(data []byte) (*Manifest, error) {
	raw := map[string]string{}
	order := make([]string, 0, 32)

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := assignmentLine.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, fmt.Errorf("manifest line %d: invalid syntax %q", lineNo, trimmed)
		}
		key := m[1]
		value := stripMatchedQuotes(strings.TrimSpace(m[2]))
		value = interpolate(value, raw)
		if _, exists := raw[key]; !exists {
			order = append(order, key)
		}
		raw[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	images := map[string]Image{}
	for _, key := range order {
		base, field, ok := splitImageKey(key)
		if !ok {
			continue
		}
		img := images[base]
		switch field {
		case "REPO":
			img.Repo = raw[key]
		case "DIGEST":
			img.Digest = raw[key]
		case "VERSION":
			img.Version = raw[key]
		}
		images[base] = img
	}

	return &Manifest{raw: raw, images: images}, nil
}

func splitImageKey(key string) (base, field string, ok bool) {
	for _, suffix := range []string{"_REPO", "_DIGEST", "_VERSION"} {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), strings.TrimPrefix(suffix, "_"), true
		}
	}
	return "", "", false
}

func interpolate(value string, known map[string]string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	var out strings.Builder
	i := 0
	for i < len(value) {
		if strings.HasPrefix(value[i:], "${") {
			end := strings.Index(value[i:], "}")
			if end < 0 {
				out.WriteString(value[i:])
				break
			}
			key := value[i+2 : i+end]
			out.WriteString(known[key])
			i += end + 1
			continue
		}
		out.WriteByte(value[i])
		i++
	}
	return out.String()
}

func stripMatchedQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Raw returns a key's literal value, mostly useful for non-image
// configuration knobs carried in the same file (e.g. COMPOSE_PROJECT_NAME
// defaults).
func (m *Manifest) Raw(key string) (string, bool) {
	v, ok := m.raw[key]
	return v, ok
}

// Image looks up a logical key (e.g. "SPLUNK", "REDIS", "PROMETHEUS").
func (m *Manifest) Image(key string) (Image, bool) {
	img, ok := m.images[key]
	return img, ok
}

// Keys returns the sorted logical image keys present in the manifest.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.images))
	for k := range m.images {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Verify asserts every declared digest matches the sha256 shape and every
// declared version matches the permissive semver grammar, returning the
// list of failing "<key>.<field>" identifiers.
func (m *Manifest) Verify() []string {
	var failing []string
	for _, key := range m.Keys() {
		img := m.images[key]
		if img.Digest != "" && !digestPattern.MatchString(img.Digest) {
			failing = append(failing, key+".DIGEST")
		}
		if img.Version != "" && !semverPattern.MatchString(img.Version) {
			failing = append(failing, key+".VERSION")
		}
	}
	return failing
}

// ImageRefResult carries the resolved reference string plus whether a
// mutable-tag fallback was used, so callers can surface the spec's required
// warning.
type ImageRefResult struct {
	Ref          string
	UsedTag      bool
	DigestFailed bool
}

// ImageRef implements the manifest's image_ref(repo, digest, tag) helper:
// prefer repo@digest when the digest validates, fall back to repo:tag with
// a warning, and fail when neither is usable.
func ImageRef(repo, digest, tag string) (ImageRefResult, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return ImageRefResult{}, fmt.Errorf("image repo is required")
	}
	digest = strings.TrimSpace(digest)
	digestFailed := false
	if digest != "" {
		if digestPattern.MatchString(digest) {
			return ImageRefResult{Ref: repo + "@" + digest}, nil
		}
		digestFailed = true
	}
	tag = strings.TrimSpace(tag)
	if tag != "" {
		return ImageRefResult{Ref: repo + ":" + tag, UsedTag: true, DigestFailed: digestFailed}, nil
	}
	if digestFailed {
		return ImageRefResult{}, fmt.Errorf("invalid digest %q for repo %q", digest, repo)
	}
	return ImageRefResult{}, fmt.Errorf("image %q has neither a valid digest nor a tag", repo)
}

// Ref resolves a manifest entry to its preferred reference form.
func (m *Manifest) Ref(key string) (ImageRefResult, error) {
	img, ok := m.Image(key)
	if !ok {
		return ImageRefResult{}, fmt.Errorf("unknown image key %q", key)
	}
	return ImageRef(img.Repo, img.Digest, img.Version)
}
