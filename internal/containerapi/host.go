package containerapi

import (
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// hostPinned reports whether the operator explicitly pinned a connection
// target, in which case auto-detection must not silently substitute
// another host.
func hostPinned() bool {
	return os.Getenv("DOCKER_HOST") != "" || strings.TrimSpace(os.Getenv("DOCKER_CONTEXT")) != ""
}

// AutoDockerHost finds an alternate Docker-API socket (Colima on macOS today)
// when the default /var/run/docker.sock isn't present and nothing was
// pinned explicitly.
func AutoDockerHost() (string, bool) {
	if os.Getenv("DOCKER_HOST") != "" {
		return "", false
	}
	if strings.TrimSpace(os.Getenv("DOCKER_CONTEXT")) != "" {
		return "", false
	}
	if defaultDockerSocketAvailable() {
		return "", false
	}
	host, ok := detectColimaHost()
	if ok {
		return host, true
	}
	return "", false
}

func defaultDockerSocketAvailable() bool {
	return socketExists("/var/run/docker.sock")
}

func detectColimaHost() (string, bool) {
	if runtime.GOOS != "darwin" {
		return "", false
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	colimaHome := strings.TrimSpace(os.Getenv("COLIMA_HOME"))
	if colimaHome == "" {
		colimaHome = filepath.Join(home, ".colima")
	}
	profiles := colimaProfileCandidates(home)
	if host, ok := detectColimaHostForProfiles(colimaHome, profiles); ok {
		return host, true
	}
	entries, readErr := os.ReadDir(colimaHome)
	if readErr != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, strings.TrimSpace(entry.Name()))
		}
	}
	sort.Strings(names)
	if host, ok := detectColimaHostForProfiles(colimaHome, names); ok {
		return host, true
	}
	return "", false
}

func detectColimaHostForProfiles(colimaHome string, profiles []string) (string, bool) {
	for _, profile := range profiles {
		p := strings.TrimSpace(profile)
		if p == "" {
			continue
		}
		candidate := filepath.Join(colimaHome, p, "docker.sock")
		if socketExists(candidate) {
			return "unix://" + candidate, true
		}
	}
	return "", false
}

func colimaProfileCandidates(home string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)
	push := func(value string) {
		name := strings.TrimSpace(value)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	// Explicit profile hints first.
	push(os.Getenv("COLIMA_PROFILE"))
	push(os.Getenv("COLIMA_INSTANCE"))
	// Honor docker current context hints (colima / colima-<profile>).
	if current := dockerCurrentContext(home); current != "" {
		if profile, ok := colimaProfileFromDockerContext(current); ok {
			push(profile)
		}
	}
	// Keep default as a fallback.
	push("default")
	return out
}

func dockerCurrentContext(home string) string {
	home = strings.TrimSpace(home)
	if home == "" {
		return ""
	}
	path := filepath.Join(home, ".docker", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var payload struct {
		CurrentContext string `json:"currentContext"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.CurrentContext)
}

func colimaProfileFromDockerContext(contextName string) (string, bool) {
	name := strings.TrimSpace(contextName)
	switch {
	case name == "colima":
		return "default", true
	case strings.HasPrefix(name, "colima-"):
		profile := strings.TrimSpace(strings.TrimPrefix(name, "colima-"))
		if profile != "" {
			return profile, true
		}
	}
	return "", false
}

func socketExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSocket != 0
}

// PodmanSocket returns the podman REST API socket URI, honoring
// CONTAINER_HOST/DOCKER_HOST first (podman's own client does the same), then
// falling back to the well-known rootless and rootful socket paths.
// capabilities.podman_socket is set true exactly when this returns ok.
func PodmanSocket() (string, bool) {
	if h := strings.TrimSpace(os.Getenv("CONTAINER_HOST")); h != "" {
		return h, strings.HasSuffix(h, "podman.sock")
	}
	if h := strings.TrimSpace(os.Getenv("DOCKER_HOST")); strings.HasSuffix(h, "podman.sock") {
		return h, true
	}
	if u, err := user.Current(); err == nil {
		candidate := filepath.Join("/run/user", u.Uid, "podman", "podman.sock")
		if socketExists(candidate) {
			return "unix://" + candidate, true
		}
	}
	const rootful = "/run/podman/podman.sock"
	if socketExists(rootful) {
		return "unix://" + rootful, true
	}
	return "", false
}

// RootlessUID reports the invoking user's uid and whether it is non-zero,
// the cheapest signal for capabilities.rootless short of shelling out to
// `podman info`.
func RootlessUID() (int, bool) {
	u, err := user.Current()
	if err != nil {
		return 0, false
	}
	uid := 0
	for _, r := range u.Uid {
		if r < '0' || r > '9' {
			return 0, false
		}
		uid = uid*10 + int(r-'0')
	}
	return uid, uid != 0
}
