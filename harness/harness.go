// Package harness configures test binaries of ML pipelines: command-line
// options, device selection, skip helpers and cleanup of ambient state
// between tests.
//
// A typical test package wires it in TestMain:
//
//	var testConfig = harness.New()
//
//	func TestMain(m *testing.M) {
//		testConfig.RegisterFlags(nil)
//		flag.Parse()
//		testConfig.ConfigureCompat()
//		testdata.MustSetup(testConfig)
//		os.Exit(m.Run())
//	}
//
// Individual tests then use the skip helpers and fixtures:
//
//	func TestGPUKernel(t *testing.T) {
//		testConfig.RunOnlyOn(t, harness.DeviceGPU)
//		harness.RestoreEnvAfterTest(t)
//		...
//	}
package harness

import (
	"flag"
	"testing"

	"github.com/gomlx/mltest/compat"
)

// Device names returned by Config.Device.
const (
	DeviceCPU = "CPU"
	DeviceGPU = "GPU"
)

// Defaults for the test-data archive bootstrap. They can be overridden per
// project with an mltest.toml file (see Config.LoadFile).
const (
	DefaultArchiveName    = "test_data.tar.gz"
	DefaultArchiveBaseURL = "https://github.com/gomlx/mltest/releases/download/v1.0.0/"
	DefaultDataSubdir     = ".data"
)

// Config holds the options consumed by the test harness. The boolean fields
// map one-to-one to command-line flags (see Config.RegisterFlags); the
// remaining fields configure the test-data bootstrap and the cleanup
// fixtures, and are usually loaded from an mltest.toml file.
type Config struct {
	// CPU selects the CPU device for testing. Default is to test on GPU.
	CPU bool

	// UseLocalTestData skips downloading the test-data archive and uses the
	// local copy instead.
	UseLocalTestData bool

	// WithDownloads activates tests that download models from the cloud.
	WithDownloads bool

	// RelaxCompat relaxes accelerator compatibility checks to a simple
	// availability check, without the compatibility matrix check.
	RelaxCompat bool

	// Nightly activates tests marked as nightly, used for nightly quality
	// assurance runs.
	Nightly bool

	// TestRoot is the directory under which the test-data cache subdirectory
	// lives. Defaults to the current directory, where the test binary runs.
	TestRoot string

	// DataSubdir is the name of the cache subdirectory under TestRoot.
	DataSubdir string

	// ArchiveName is the file name of the test-data archive.
	ArchiveName string

	// ArchiveBaseURL is the URL prefix from which ArchiveName is downloaded.
	ArchiveBaseURL string

	// CleanupDirs are experiment output directories that must not exist when
	// a test starts and are removed when it finishes.
	CleanupDirs []string

	// MaxParallelDownloads bounds the parallel model downloads for tests
	// activated by WithDownloads.
	MaxParallelDownloads int
}

// New returns a Config with the default settings.
func New() *Config {
	return &Config{
		TestRoot:             ".",
		DataSubdir:           DefaultDataSubdir,
		ArchiveName:          DefaultArchiveName,
		ArchiveBaseURL:       DefaultArchiveBaseURL,
		CleanupDirs:          []string{"lightning_logs", "MLTest_experiments", "mltest_experiments"},
		MaxParallelDownloads: 20,
	}
}

// RegisterFlags registers the harness command-line flags on the given
// flag set, using the current Config values as defaults. If fs is nil it
// registers on flag.CommandLine, to be parsed along the standard test flags.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.BoolVar(&c.CPU, "cpu", c.CPU,
		"pass that argument to use CPU during testing (DEFAULT: False = GPU)")
	fs.BoolVar(&c.UseLocalTestData, "use_local_test_data", c.UseLocalTestData,
		"pass that argument to use local test data/skip downloading from URL/GitHub (DEFAULT: False)")
	fs.BoolVar(&c.WithDownloads, "with_downloads", c.WithDownloads,
		"pass this argument to activate tests which download models from the cloud.")
	fs.BoolVar(&c.RelaxCompat, "relax_numba_compat", c.RelaxCompat,
		"accelerator compatibility checks will be relaxed to just availability of cuda, "+
			"without cuda compatibility matrix check")
	fs.BoolVar(&c.Nightly, "nightly", c.Nightly,
		"pass this argument to activate tests which have been marked as nightly for nightly quality assurance.")
}

// Device returns the device under test, DeviceCPU or DeviceGPU, according to
// the --cpu flag.
func (c *Config) Device() string {
	if c.CPU {
		return DeviceCPU
	}
	return DeviceGPU
}

// ConfigureCompat applies the --relax_numba_compat flag to the compat
// package strictness. Call it once after flags are parsed.
func (c *Config) ConfigureCompat() {
	compat.SetStrictness(!c.RelaxCompat)
}

// RunOnlyOn skips the test unless the configured device matches device.
func (c *Config) RunOnlyOn(tb testing.TB, device string) {
	tb.Helper()
	if c.Device() != device {
		tb.Skipf("skipped on this device: %s", c.Device())
	}
}

// RequiresDownloads skips the test unless the --with_downloads flag was
// passed.
func (c *Config) RequiresDownloads(tb testing.TB) {
	tb.Helper()
	if !c.WithDownloads {
		tb.Skip("To run this test, pass --with_downloads option. It will download (and cache) models from cloud.")
	}
}

// NightlyOnly skips the test unless the --nightly flag was passed.
func (c *Config) NightlyOnly(tb testing.TB) {
	tb.Helper()
	if !c.Nightly {
		tb.Skip("To run this test, pass --nightly option. It will run any tests marked with \"nightly\". Currently, These tests are mostly used for QA.")
	}
}
