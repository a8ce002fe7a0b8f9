package host

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// DiagnosticInfo describes every ceiling that may cap a single allocation on this host.
// Zero limits mean "none found".
type DiagnosticInfo struct {
	OS                string   `json:"os"`
	Arch              string   `json:"arch"`
	GoVersion         string   `json:"go_version"`
	TotalMemory       uint64   `json:"total_memory"`
	CgroupsVersion    string   `json:"cgroups_version,omitempty"`
	CgroupMemoryLimit uint64   `json:"cgroup_memory_limit,omitempty"`
	AddressSpaceLimit uint64   `json:"address_space_limit,omitempty"`
	Overcommit        string   `json:"overcommit,omitempty"`
	GoMemoryLimit     int64    `json:"go_memory_limit,omitempty"`
	Recommendations   []string `json:"recommendations,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

const cgroupRoot = "/sys/fs/cgroup"

// Diagnose returns diagnostic information about the current system
func Diagnose() DiagnosticInfo {
	info := DiagnosticInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		GoVersion:   runtime.Version(),
		TotalMemory: memory.TotalMemory(),
	}

	if limit, err := AddressSpaceLimit(); err == nil {
		info.AddressSpaceLimit = limit
	}

	// math.MaxInt64 is the runtime's "no limit" value
	if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < 1<<63-1 {
		info.GoMemoryLimit = goLimit
	}

	if runtime.GOOS == "linux" {
		info.CgroupsVersion = detectCgroupsVersion(cgroupRoot)
		info.CgroupMemoryLimit = cgroupMemoryLimit(cgroupRoot)
		info.Overcommit = overcommitMode("/proc/sys/vm/overcommit_memory")
	}

	if info.TotalMemory == 0 {
		info.Warnings = append(info.Warnings, "Total physical memory could not be determined")
	}
	if info.CgroupMemoryLimit > 0 && info.TotalMemory > 0 && info.CgroupMemoryLimit < info.TotalMemory {
		info.Warnings = append(info.Warnings,
			"cgroup memory limit is below physical memory: large blocks may be mapped but killed when touched",
		)
	}
	if info.Overcommit == "always" {
		info.Warnings = append(info.Warnings,
			"Kernel overcommit is set to always: allocations succeed regardless of available memory",
		)
	}

	if info.AddressSpaceLimit == 0 {
		info.Recommendations = append(info.Recommendations,
			"No address-space limit set: use --address-space-limit to probe against a fixed ceiling",
		)
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		info.Recommendations = append(info.Recommendations,
			"No OS page allocator on this platform: the Go heap allocator cannot detect real exhaustion",
		)
	}

	return info
}

// detectCgroupsVersion attempts to detect which cgroups version is mounted under root
func detectCgroupsVersion(root string) string {
	// Try cgroups v2
	if _, err := os.Stat(filepath.Join(root, "cgroup.controllers")); err == nil {
		return "v2"
	}

	// Try cgroups v1
	if _, err := os.Stat(filepath.Join(root, "memory")); err == nil {
		return "v1"
	}

	return "unavailable"
}

// cgroupMemoryLimit reads the memory ceiling of the cgroup mounted at root.
// v2 reports "max" for no limit; v1 reports a huge page-aligned number.
func cgroupMemoryLimit(root string) uint64 {
	candidates := []string{
		filepath.Join(root, "memory.max"),
		filepath.Join(root, "memory", "memory.limit_in_bytes"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return parseCgroupLimit(string(data))
	}
	return 0
}

func parseCgroupLimit(raw string) uint64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "max" {
		return 0
	}
	val, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	// v1 "unlimited" is PAGE_COUNTER_MAX scaled by the page size
	if val >= 1<<62 {
		return 0
	}
	return val
}

// overcommitMode maps /proc/sys/vm/overcommit_memory to a readable name
func overcommitMode(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	switch strings.TrimSpace(string(data)) {
	case "0":
		return "heuristic"
	case "1":
		return "always"
	case "2":
		return "never"
	default:
		return ""
	}
}
