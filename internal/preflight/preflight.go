// Package preflight implements the Host Preflight (C4): scaled
// RAM/CPU/disk minima, a kernel vm.max_map_count check, and a port-probe
// fallback chain, aggregating every failure into one report instead of
// failing on the first.
//
// Grounded on the teacher's guardrail pattern of collecting a []finding
// slice and returning it whole (internal/vault's plaintext-secret
// guardrail in paas_guardrails.go: resolvePaasComposePlaintextFindings
// walks every candidate and appends, never returns on first match) — the
// same "collect everything, decide once" shape, applied here to host
// capacity checks instead of secret scanning.
package preflight

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	goruntime "runtime"
	"strconv"
	"strings"

	"splunkctl/internal/config"
	ctrruntime "splunkctl/internal/runtime"
)

// Report is the aggregated preflight outcome. Ok is true only when Reasons
// is empty.
type Report struct {
	Reasons []string
}

func (r Report) Ok() bool { return len(r.Reasons) == 0 }

// function-variable seams for the external probes, teacher idiom.
var (
	lookPathFn    = exec.LookPath
	runCommandFn  = runPortProbeCommand
	listenFn      = net.Listen
	meminfoPath   = "/proc/meminfo"
	maxMapPath    = "/proc/sys/vm/max_map_count"
	numCPUFn      = goruntime.NumCPU
	diskFreeBytesFn = diskFreeBytes
)

const (
	baselineRAMMB   = 4096
	baselineCores   = 2
	minMaxMapCount  = 262144
	minDataDiskGiB  = 10
)

// Run executes every check and returns the aggregated report, per spec.md
// §4.4's "collect all failures, not just the first" rule.
func Run(cfg config.EffectiveConfig, caps ctrruntime.Capabilities) Report {
	var reasons []string

	reasons = append(reasons, checkMemory(cfg)...)
	reasons = append(reasons, checkCPU(cfg)...)
	reasons = append(reasons, checkDisk(cfg)...)
	if cfg.EnableSplunk {
		reasons = append(reasons, checkKernel()...)
	}
	reasons = append(reasons, checkPorts(cfg)...)

	return Report{Reasons: reasons}
}

func minRAMMB(cfg config.EffectiveConfig) int {
	if !cfg.EnableSplunk {
		return baselineRAMMB
	}
	scaled := 8192*cfg.IndexerCount + 4096*cfg.SearchHeadCount
	if scaled > baselineRAMMB {
		return scaled
	}
	return baselineRAMMB
}

func minCores(cfg config.EffectiveConfig) int {
	if !cfg.EnableSplunk {
		return baselineCores
	}
	scaled := 2*cfg.IndexerCount + cfg.SearchHeadCount
	if scaled > baselineCores {
		return scaled
	}
	return baselineCores
}

func checkMemory(cfg config.EffectiveConfig) []string {
	total, err := totalMemMB()
	if err != nil {
		return []string{fmt.Sprintf("could not determine host RAM: %v", err)}
	}
	need := minRAMMB(cfg)
	if total < need {
		return []string{fmt.Sprintf("insufficient RAM: host has %d MB, need >= %d MB", total, need)}
	}
	return nil
}

func checkCPU(cfg config.EffectiveConfig) []string {
	need := minCores(cfg)
	if numCPUFn() < need {
		return []string{fmt.Sprintf("insufficient CPU cores: host has %d, need >= %d", numCPUFn(), need)}
	}
	return nil
}

func checkDisk(cfg config.EffectiveConfig) []string {
	var reasons []string
	dataFree, err := diskFreeBytesFn(cfg.DataDir)
	if err != nil {
		reasons = append(reasons, fmt.Sprintf("could not stat disk at data_dir %q: %v", cfg.DataDir, err))
	} else if dataFree < minDataDiskGiB*giB {
		reasons = append(reasons, fmt.Sprintf("insufficient disk at data_dir %q: %.1f GiB free, need >= %d GiB", cfg.DataDir, float64(dataFree)/giB, minDataDiskGiB))
	}
	if cfg.EnableSplunk {
		needGiB := 20 * cfg.IndexerCount
		splunkFree, err := diskFreeBytesFn(cfg.SplunkDataDir)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("could not stat disk at splunk_data_dir %q: %v", cfg.SplunkDataDir, err))
		} else if splunkFree < int64(needGiB)*giB {
			reasons = append(reasons, fmt.Sprintf("insufficient disk at splunk_data_dir %q: %.1f GiB free, need >= %d GiB", cfg.SplunkDataDir, float64(splunkFree)/giB, needGiB))
		}
	}
	return reasons
}

const giB = 1 << 30

func checkKernel() []string {
	data, err := os.ReadFile(maxMapPath)
	if err != nil {
		// Non-Linux hosts (or restricted containers) simply don't expose
		// this knob; that's advisory information for the remediation
		// hint, not a hard preflight failure on its own.
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil
	}
	if n < minMaxMapCount {
		return []string{fmt.Sprintf("vm.max_map_count=%d is below the Splunk minimum of %d (remediation: sysctl -w vm.max_map_count=%d)", n, minMaxMapCount, minMaxMapCount)}
	}
	return nil
}

func checkPorts(cfg config.EffectiveConfig) []string {
	ports := []int{cfg.AppPort}
	if cfg.EnableSplunk {
		ports = append(ports, cfg.SplunkWebPort)
		for i := 0; i < cfg.IndexerCount; i++ {
			ports = append(ports, 9997+i)
		}
	}
	if cfg.EnableMonitoring {
		ports = append(ports, 9090, 3000)
	}

	var reasons []string
	for _, port := range ports {
		if inUse, err := portInUse(port); err != nil {
			reasons = append(reasons, fmt.Sprintf("could not probe port %d: %v", port, err))
		} else if inUse {
			reasons = append(reasons, fmt.Sprintf("port %d is already in use", port))
		}
	}
	return reasons
}

// portInUse tries ss, then lsof, then netstat, then finally a bind test —
// spec.md §4.4's explicit fallback chain, since no one tool is guaranteed
// present on every distro.
func portInUse(port int) (bool, error) {
	probes := []struct {
		bin  string
		args []string
	}{
		{"ss", []string{"-ltn", fmt.Sprintf("sport = :%d", port)}},
		{"lsof", []string{"-iTCP:" + strconv.Itoa(port), "-sTCP:LISTEN"}},
		{"netstat", []string{"-ltn"}},
	}
	for _, p := range probes {
		if _, err := lookPathFn(p.bin); err != nil {
			continue
		}
		out, err := runCommandFn(p.bin, p.args...)
		if err != nil {
			continue
		}
		if p.bin == "netstat" {
			return strings.Contains(out, fmt.Sprintf(":%d ", port)), nil
		}
		return strings.TrimSpace(out) != "" && strings.Contains(out, strconv.Itoa(port)), nil
	}
	return bindProbe(port)
}

func bindProbe(port int) (bool, error) {
	ln, err := listenFn("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return true, nil
	}
	ln.Close()
	return false, nil
}

func runPortProbeCommand(bin string, args ...string) (string, error) {
	cmd := exec.Command(bin, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func totalMemMB() (int, error) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("unexpected MemTotal line %q", line)
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, err
		}
		return kb / 1024, nil
	}
	return 0, fmt.Errorf("MemTotal not found in %s", meminfoPath)
}

func diskFreeBytes(path string) (int64, error) {
	return statfsFreeBytes(path)
}
