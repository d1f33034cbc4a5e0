package harness

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConfigFileName is the optional per-project configuration file, looked up
// under Config.TestRoot by LoadDefaultFile.
const ConfigFileName = "mltest.toml"

// fileConfig mirrors the subset of Config that makes sense in a checked-in
// file: the archive location and the cleanup settings. The per-invocation
// booleans stay command-line only.
type fileConfig struct {
	TestRoot             *string  `toml:"test_root"`
	DataSubdir           *string  `toml:"data_subdir"`
	ArchiveName          *string  `toml:"archive_name"`
	ArchiveBaseURL       *string  `toml:"archive_base_url"`
	CleanupDirs          []string `toml:"cleanup_dirs"`
	MaxParallelDownloads *int     `toml:"max_parallel_downloads"`
}

// LoadFile applies the settings from the given TOML file on top of the
// current Config values. Fields absent from the file are left untouched.
func (c *Config) LoadFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %q", path)
	}
	var fc fileConfig
	err = toml.Unmarshal(contents, &fc)
	if err != nil {
		return errors.Wrapf(err, "failed to parse config file %q", path)
	}
	if fc.TestRoot != nil {
		c.TestRoot = *fc.TestRoot
	}
	if fc.DataSubdir != nil {
		c.DataSubdir = *fc.DataSubdir
	}
	if fc.ArchiveName != nil {
		c.ArchiveName = *fc.ArchiveName
	}
	if fc.ArchiveBaseURL != nil {
		c.ArchiveBaseURL = *fc.ArchiveBaseURL
	}
	if fc.CleanupDirs != nil {
		c.CleanupDirs = fc.CleanupDirs
	}
	if fc.MaxParallelDownloads != nil {
		c.MaxParallelDownloads = *fc.MaxParallelDownloads
	}
	klog.V(1).Infof("Loaded harness configuration from %q", path)
	return nil
}

// LoadDefaultFile loads ConfigFileName from the test root, if present.
// A missing file is not an error.
func (c *Config) LoadDefaultFile() error {
	path := filepath.Join(c.TestRoot, ConfigFileName)
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to stat config file %q", path)
	}
	return c.LoadFile(path)
}
