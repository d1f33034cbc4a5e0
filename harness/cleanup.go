package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/mltest/pkg/support/fsutil"
)

// existingExperimentDirs returns the configured experiment output
// directories that currently exist under the test root.
func (c *Config) existingExperimentDirs() []string {
	var existing []string
	for _, dir := range c.CleanupDirs {
		path := filepath.Join(c.TestRoot, dir)
		if fsutil.MustFileExists(path) {
			existing = append(existing, path)
		}
	}
	return existing
}

// GuardExperimentDirs fails the test immediately if any of the configured
// experiment output directories already exists -- a pre-existing directory
// may hold an expensive training run, and silently removing it would destroy
// it. When the test finishes the directories are removed, best-effort.
func (c *Config) GuardExperimentDirs(tb testing.TB) {
	tb.Helper()
	if existing := c.existingExperimentDirs(); len(existing) > 0 {
		tb.Fatalf("experiment directories %q already exist, refusing to run: remove them manually first", existing)
	}
	tb.Cleanup(func() {
		for _, dir := range c.CleanupDirs {
			// Deletion errors are ignored, the next GuardExperimentDirs catches leftovers.
			_ = os.RemoveAll(filepath.Join(c.TestRoot, dir))
		}
	})
}
