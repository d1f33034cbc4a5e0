// Package compat answers whether the accelerator runtime on the current
// machine is usable for tests.
//
// By default checks are strict: CUDA must be present and the driver must
// satisfy the minimum version of the supported compatibility matrix. With
// SetStrictness(false) (the --relax_numba_compat flag) the check is relaxed
// to mere availability of CUDA.
//
// All probes are best-effort: they never fail the process, an unreadable
// driver is reported as "not available" with a reason.
package compat

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

const nvidiaVersionPath = "/proc/driver/nvidia/version"

// minDriverMajor is the minimum NVIDIA driver major version of the supported
// compatibility matrix.
const minDriverMajor = 450

var strict atomic.Bool

func init() {
	strict.Store(true)
}

// SetStrictness selects between the full compatibility matrix check (true,
// the default) and a plain CUDA availability check (false).
func SetStrictness(strictMode bool) {
	klog.V(1).Infof("Setting accelerator compat strictness: %v", strictMode)
	strict.Store(strictMode)
}

// Strict returns the current strictness setting.
func Strict() bool {
	return strict.Load()
}

// Available reports whether an accelerator is visible to this process, with a
// human-readable reason.
func Available() (bool, string) {
	if devices, found := os.LookupEnv("CUDA_VISIBLE_DEVICES"); found {
		devices = strings.TrimSpace(devices)
		if devices == "" || devices == "-1" {
			return false, "accelerators hidden via CUDA_VISIBLE_DEVICES."
		}
	}
	if _, err := os.Stat(nvidiaVersionPath); err != nil {
		return false, "no NVIDIA driver loaded, accelerator is not available."
	}
	return true, "accelerator is available."
}

// CUDAEnabled reports whether CUDA can be used by the tests: it requires an
// available accelerator and, under strict mode, a driver that satisfies the
// compatibility matrix.
func CUDAEnabled() (bool, string) {
	ok, reason := Available()
	if !ok {
		return ok, reason
	}
	if !Strict() {
		return true, "CUDA is available, compatibility matrix check relaxed."
	}
	var major int
	err := exceptions.TryCatch[error](func() {
		major = driverMajorVersion()
	})
	if err != nil {
		klog.Errorf("Failed to read NVIDIA driver version: %+v", err)
		return false, "CUDA is available but the driver version could not be determined."
	}
	if major < minDriverMajor {
		return false, "CUDA driver does not meet the minimum supported version. Consider relaxing the compatibility check."
	}
	return true, "CUDA is available and the driver is supported."
}

// driverMajorVersion parses the driver major version out of the kernel module
// version file. It panics (throws) if the file cannot be read or parsed.
func driverMajorVersion() int {
	contents, err := os.ReadFile(nvidiaVersionPath)
	if err != nil {
		exceptions.Panicf("failed to read %q: %v", nvidiaVersionPath, err)
	}
	// First line looks like:
	// NVRM version: NVIDIA UNIX x86_64 Kernel Module  535.54.03  <build date>
	line, _, _ := strings.Cut(string(contents), "\n")
	for _, field := range strings.Fields(line) {
		majorStr, rest, found := strings.Cut(field, ".")
		if !found || rest == "" {
			continue
		}
		major, err := strconv.Atoi(majorStr)
		if err != nil {
			continue
		}
		return major
	}
	exceptions.Panicf("no driver version found in %q: %q", nvidiaVersionPath, line)
	return 0
}
