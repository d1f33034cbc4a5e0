package harness_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/mltest/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mltest.toml")
	contents := `
archive_name = "fixtures.tar.gz"
archive_base_url = "https://example.com/fixtures/"
cleanup_dirs = ["runs", "logs"]
max_parallel_downloads = 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg := harness.New()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "fixtures.tar.gz", cfg.ArchiveName)
	assert.Equal(t, "https://example.com/fixtures/", cfg.ArchiveBaseURL)
	assert.Equal(t, []string{"runs", "logs"}, cfg.CleanupDirs)
	assert.Equal(t, 4, cfg.MaxParallelDownloads)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, harness.DefaultDataSubdir, cfg.DataSubdir)
	assert.Equal(t, ".", cfg.TestRoot)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := harness.New()
	require.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.toml")))

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("archive_name = [unclosed"), 0644))
	require.Error(t, cfg.LoadFile(path))
}

func TestLoadDefaultFile(t *testing.T) {
	cfg := harness.New()
	cfg.TestRoot = t.TempDir()
	require.NoError(t, cfg.LoadDefaultFile(), "missing default file is not an error")

	path := filepath.Join(cfg.TestRoot, harness.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`data_subdir = ".fixtures"`), 0644))
	require.NoError(t, cfg.LoadDefaultFile())
	assert.Equal(t, ".fixtures", cfg.DataSubdir)
}
