// Package runtime implements the Runtime & Capability Detector (C3): it
// probes for a usable container runtime + compose implementation pair,
// derives the capability bitset gated on that pair, and exposes a single
// compose(args...) invocation abstraction bound to whatever was detected.
//
// Grounded on _examples/Aureuma-si/tools/si/images.go's buildkit probing
// (dockerBuildxAvailable: run a subcommand, inspect combined output for a
// recognizable "unsupported" message vs. a real failure) and docker_cli.go's
// exec.Command wrapping, generalized from a single docker-specific probe to
// the full runtime/compose preference ladder.
package runtime

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"splunkctl/internal/containerapi"
	"splunkctl/internal/errs"
)

// Impl identifies a (runtime, compose) pair in the spec's preference order.
type Impl string

const (
	ImplPodmanNative Impl = "podman-compose-native"
	ImplDockerV2     Impl = "docker-compose-v2"
	ImplPodmanPy     Impl = "podman-compose-py"
	ImplDockerV1     Impl = "docker-compose-v1"
)

type NetworkBackend string

const (
	NetworkBridge  NetworkBackend = "bridge"
	NetworkNetavark NetworkBackend = "netavark"
	NetworkCNI     NetworkBackend = "cni"
)

// Capabilities is the immutable bitset the detector produces. Once returned
// from Detect, nothing mutates it.
type Capabilities struct {
	Runtime        string // "docker" | "podman"
	ComposeImpl    Impl
	Secrets        bool
	Healthcheck    bool
	Profiles       bool
	Buildkit       bool
	Rootless       bool
	AirGapped      bool
	PodmanSocket   bool
	NetworkBackend NetworkBackend
}

var gating = map[Impl]struct {
	secrets, healthcheck, profiles bool
}{
	ImplDockerV2:     {true, true, true},
	ImplPodmanNative: {true, true, true},
	ImplPodmanPy:     {false, true, false},
	ImplDockerV1:     {false, true, false},
}

// preference order per spec.md §4.3; swapped on RHEL-family v8 hosts where
// podman-compose's python implementation has known incompatibilities.
var defaultPreference = []Impl{ImplPodmanNative, ImplDockerV2, ImplPodmanPy, ImplDockerV1}
var rhel8Preference = []Impl{ImplDockerV2, ImplDockerV1, ImplPodmanNative, ImplPodmanPy}

// function-variable seams, teacher idiom (images.go's dockerBuildxAvailableFn).
var (
	lookPathFn    = exec.LookPath
	runCommandFn  = runCommand
	dialTimeoutFn = net.DialTimeout
	osReleaseFn   = readOSRelease
)

func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Detector holds the detected Capabilities plus the bound compose
// invocation. Zero value is "not yet detected"; compose() fails with
// NotInitialized until Detect succeeds.
type Detector struct {
	mu    sync.RWMutex
	caps  *Capabilities
	impl  Impl
}

// New returns an undetected Detector.
func New() *Detector {
	return &Detector{}
}

// Detect probes candidates in preference order and selects the first
// viable (runtime, impl) pair. Idempotent and side-effect-free beyond the
// read-only probe commands themselves.
func (d *Detector) Detect(ctx context.Context) (Capabilities, error) {
	pref := defaultPreference
	if isRHEL8Family() {
		pref = rhel8Preference
	}

	var chosen Impl
	for _, impl := range pref {
		if viable(ctx, impl) {
			chosen = impl
			break
		}
	}
	if chosen == "" {
		return Capabilities{}, errs.New(errs.MissingDependency, "runtime.detect",
			"no usable container runtime + compose implementation found").
			WithRemediation("install Docker with the compose v2 plugin, or Podman with podman-compose")
	}

	gate := gating[chosen]
	caps := Capabilities{
		Runtime:     runtimeOf(chosen),
		ComposeImpl: chosen,
		Secrets:     gate.secrets,
		Healthcheck: gate.healthcheck,
		Profiles:    gate.profiles,
	}
	caps.Buildkit = caps.Runtime == "docker" && buildxAvailable()
	sock, isPodmanSock := containerapi.PodmanSocket()
	caps.PodmanSocket = isPodmanSock && sock != ""
	caps.Rootless = detectRootless(caps.Runtime)
	caps.NetworkBackend = detectNetworkBackend(caps.Runtime)
	caps.AirGapped = detectAirGapped()

	d.mu.Lock()
	d.caps = &caps
	d.impl = chosen
	d.mu.Unlock()

	return caps, nil
}

func runtimeOf(impl Impl) string {
	switch impl {
	case ImplPodmanNative, ImplPodmanPy:
		return "podman"
	default:
		return "docker"
	}
}

// viable reports whether impl's binary exists, `info` succeeds, and
// `compose version` returns non-empty output — spec.md §4.3's exact
// definition. Never mutates state.
func viable(ctx context.Context, impl Impl) bool {
	infoBin := infoBinaryOf(impl)
	if _, err := lookPathFn(infoBin); err != nil {
		return false
	}
	if _, err := runCommandFn(infoBin, "info"); err != nil {
		return false
	}
	composeBin, composeArgs := composeCommandOf(impl, "version")
	if _, err := lookPathFn(composeBin); err != nil {
		return false
	}
	out, err := runCommandFn(composeBin, composeArgs...)
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// infoBinaryOf is the runtime binary impl's `info` probe runs against.
func infoBinaryOf(impl Impl) string {
	switch impl {
	case ImplPodmanNative, ImplPodmanPy:
		return "podman"
	default:
		return "docker"
	}
}

// composeCommandOf returns the binary + args used to invoke compose for
// impl: native plugins are "<runtime> compose <args>"; the legacy
// implementations are their own standalone binaries.
func composeCommandOf(impl Impl, args ...string) (string, []string) {
	switch impl {
	case ImplDockerV1:
		return "docker-compose", args
	case ImplPodmanPy:
		return "podman-compose", args
	case ImplPodmanNative:
		return "podman", append([]string{"compose"}, args...)
	default:
		return "docker", append([]string{"compose"}, args...)
	}
}

func buildxAvailable() bool {
	out, err := runCommandFn("docker", "buildx", "version")
	if err != nil {
		lower := strings.ToLower(out)
		if strings.Contains(lower, "unknown command") || strings.Contains(lower, "not a docker command") {
			return false
		}
		return false
	}
	return strings.TrimSpace(out) != ""
}

func detectRootless(rt string) bool {
	if rt == "podman" {
		out, err := runCommandFn("podman", "info", "--format", "{{.Host.Security.Rootless}}")
		if err == nil {
			return strings.TrimSpace(strings.ToLower(out)) == "true"
		}
	}
	if uid, ok := containerapi.RootlessUID(); ok {
		return uid != 0
	}
	return false
}

func detectNetworkBackend(rt string) NetworkBackend {
	if rt == "podman" {
		out, err := runCommandFn("podman", "info", "--format", "{{.Host.NetworkBackend}}")
		if err == nil {
			switch strings.TrimSpace(strings.ToLower(out)) {
			case "netavark":
				return NetworkNetavark
			case "cni":
				return NetworkCNI
			}
		}
	}
	return NetworkBridge
}

// canonicalRegistries is the air-gapped reachability shortlist.
var canonicalRegistries = []string{
	"registry-1.docker.io:443",
	"quay.io:443",
	"mcr.microsoft.com:443",
}

// detectAirGapped dials each canonical registry with a short budget and
// never shells out to `timeout`.
func detectAirGapped() bool {
	for _, addr := range canonicalRegistries {
		conn, err := dialTimeoutFn("tcp", addr, 1500*time.Millisecond)
		if err == nil {
			conn.Close()
			return false
		}
	}
	return true
}

func isRHEL8Family() bool {
	content := osReleaseFn()
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "rhel") && !strings.Contains(lower, "centos") &&
		!strings.Contains(lower, "rocky") && !strings.Contains(lower, "almalinux") {
		return false
	}
	idx := strings.Index(lower, "version_id=")
	if idx < 0 {
		return false
	}
	rest := strings.TrimPrefix(lower[idx:], "version_id=")
	rest = strings.Trim(rest, `"`)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	major := rest
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		major = rest[:dot]
	}
	n, err := strconv.Atoi(strings.TrimSpace(major))
	return err == nil && n == 8
}

func readOSRelease() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	return string(data)
}

// Compose runs `compose args...` against the detected implementation's
// binary, failing with NotInitialized if Detect hasn't run yet.
func (d *Detector) Compose(ctx context.Context, args ...string) (string, error) {
	d.mu.RLock()
	impl := d.impl
	d.mu.RUnlock()
	if impl == "" {
		return "", errs.New(errs.NotInitialized, "runtime.compose", "compose invoked before Detect")
	}

	bin, fullArgs := composeCommandOf(impl, args...)
	cmd := exec.CommandContext(ctx, bin, fullArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.Stdin = os.Stdin
	err := cmd.Run()
	if err != nil {
		return out.String(), errs.Wrap(errs.RuntimeUnreachable, "runtime.compose", err)
	}
	return out.String(), nil
}

// Capabilities returns the last detected bitset, or NotInitialized if
// Detect hasn't run.
func (d *Detector) Capabilities() (Capabilities, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.caps == nil {
		return Capabilities{}, errs.New(errs.NotInitialized, "runtime.capabilities", "Detect has not run")
	}
	return *d.caps, nil
}
