// Package testdata ensures the shared test-data archive is present and
// extracted in the local cache directory before a test session starts.
//
// The archive is kept in a cache subdirectory (default ".data") under the
// test root. Setup compares the local archive size with the size reported by
// the remote server and re-downloads and re-extracts on absence or mismatch.
// There is no checksum validation, resume or retry: this is best-effort test
// bootstrap, failures fall back to the local cache when possible and
// otherwise abort the session.
package testdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/mltest/downloader"
	"github.com/gomlx/mltest/harness"
	"github.com/gomlx/mltest/internal/must"
	"github.com/gomlx/mltest/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dir returns the test-data cache directory for cfg. Other fixtures should
// resolve paths to fixture files relative to it.
func Dir(cfg *harness.Config) string {
	return filepath.Join(cfg.TestRoot, cfg.DataSubdir)
}

// ArchivePath returns the path of the test-data archive inside the cache
// directory.
func ArchivePath(cfg *harness.Config) string {
	return filepath.Join(Dir(cfg), cfg.ArchiveName)
}

// Setup makes sure the test-data archive is present and extracted, once per
// test session:
//
//   - With cfg.UseLocalTestData, the local archive is required and
//     re-extracted; its absence is an error.
//   - Otherwise the remote size is probed: if the remote is unreachable the
//     local archive is used when present (and the session aborted when not);
//     if local and remote sizes differ the cache is wiped, the archive
//     re-downloaded and extracted.
func Setup(cfg *harness.Config) error {
	return exceptions.TryCatch[error](func() {
		must.M(setup(cfg))
	})
}

// MustSetup runs Setup and aborts the whole test session on failure.
// Meant to be called from TestMain.
func MustSetup(cfg *harness.Config) {
	err := Setup(cfg)
	if err != nil {
		klog.Exitf("Test data setup failed: %+v", err)
	}
}

func setup(cfg *harness.Config) error {
	testDir := Dir(cfg)
	archive := ArchivePath(cfg)
	localSize := fsutil.FileSize(archive)

	if cfg.UseLocalTestData {
		if localSize == -1 {
			return errors.Errorf("test data %q is not present in the system", archive)
		}
		fmt.Printf("Using the local %q test archive (%s) found in the %q folder.\n",
			cfg.ArchiveName, fsutil.ByteCountIEC(localSize), testDir)
		return extractArchive(testDir, archive, "", true)
	}

	url := cfg.ArchiveBaseURL + cfg.ArchiveName
	remoteSize, err := downloader.RemoteSize(url)
	if err != nil {
		if localSize == -1 {
			return errors.WithMessagef(err, "test data not present in the system and cannot access the %q URL", url)
		}
		klog.Warningf("Cannot access the %q URL: %+v", url, err)
		fmt.Printf("Cannot access the %q URL, using the test data (%s) found in the %q folder.\n",
			url, fsutil.ByteCountIEC(localSize), testDir)
		return nil
	}

	if localSize != remoteSize {
		fmt.Printf("Downloading the %q test archive from %q, please wait...\n",
			cfg.ArchiveName, cfg.ArchiveBaseURL)
		return extractArchive(testDir, archive, url, false)
	}
	fmt.Printf("A valid %q test archive (%s) found in the %q folder.\n",
		cfg.ArchiveName, fsutil.ByteCountIEC(localSize), testDir)
	return nil
}

// extractArchive wipes the cache directory, fetches the archive (from url,
// or keeping the local copy when localData) and extracts it in place.
func extractArchive(testDir, archive, url string, localData bool) error {
	if fsutil.MustFileExists(testDir) {
		if !localData {
			err := os.RemoveAll(testDir)
			if err != nil {
				return errors.Wrapf(err, "failed to remove stale test dir %q", testDir)
			}
		} else {
			// The local tarball lives inside the directory being wiped, park it
			// in temporary storage across the wipe.
			tmpDir, err := os.MkdirTemp("", "mltest_data_")
			if err != nil {
				return errors.Wrap(err, "failed to create temporary storage")
			}
			defer func() { _ = os.RemoveAll(tmpDir) }()
			tmpArchive := filepath.Join(tmpDir, filepath.Base(archive))
			fmt.Println("Copying local tarfile to temporary storage..")
			err = fsutil.CopyFile(archive, tmpArchive)
			if err != nil {
				return err
			}
			fmt.Println("Deleting test dir to cleanup old data")
			err = os.RemoveAll(testDir)
			if err != nil {
				return errors.Wrapf(err, "failed to remove stale test dir %q", testDir)
			}
			err = os.MkdirAll(testDir, 0777)
			if err != nil {
				return errors.Wrapf(err, "failed to create test dir %q", testDir)
			}
			fmt.Println("Restoring local tarfile to test dir")
			err = fsutil.CopyFile(tmpArchive, archive)
			if err != nil {
				return err
			}
		}
	}
	if !fsutil.MustFileExists(testDir) {
		err := os.MkdirAll(testDir, 0777)
		if err != nil {
			return errors.Wrapf(err, "failed to create test dir %q", testDir)
		}
	}

	if url != "" && !localData {
		_, err := downloader.Download(url, archive, true)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Extracting the %q test archive, please wait...\n", archive)
	return downloader.Untar(testDir, archive)
}
