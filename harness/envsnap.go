package harness

import (
	"os"
	"strings"
	"testing"
)

// EnvSnapshot holds a copy of the process environment variables, taken at
// Capture time. Restoring it brings the environment back to exactly that
// state, removing variables added since and re-adding variables removed.
type EnvSnapshot struct {
	environ map[string]string
}

// CaptureEnv snapshots the current process environment.
func CaptureEnv() *EnvSnapshot {
	snap := &EnvSnapshot{environ: make(map[string]string)}
	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		snap.environ[key] = value
	}
	return snap
}

// Restore the process environment to the snapshot state.
func (s *EnvSnapshot) Restore() {
	os.Clearenv()
	for key, value := range s.environ {
		_ = os.Setenv(key, value)
	}
}

// RestoreEnvAfterTest captures the environment now and restores it when the
// test finishes, on every exit path (failure, skip or panic included).
func RestoreEnvAfterTest(tb testing.TB) {
	tb.Helper()
	snap := CaptureEnv()
	tb.Cleanup(snap.Restore)
}
