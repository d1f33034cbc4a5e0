// mltest manages the test-data cache and model fixtures used by the test
// suites: it can fetch the test-data archive outside a test session, prefetch
// model files, report the cache state and clean everything up.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/mltest/downloader"
	"github.com/gomlx/mltest/harness"
	"github.com/gomlx/mltest/pkg/support/fsutil"
	"github.com/gomlx/mltest/testdata"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	cfg            = harness.New()
	flagAuthToken  string
	flagWithModels bool
)

// modelCacheDir is where prefetched model files live, shared across projects.
func modelCacheDir() string {
	return filepath.Join(xdg.CacheHome, "mltest", "models")
}

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	rootCmd := &cobra.Command{
		Use:          "mltest",
		Short:        "Manage the test-data cache used by the test suites",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.LoadDefaultFile()
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfg.TestRoot, "root", ".",
		"directory under which the test-data cache subdirectory lives")
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Ensure the test-data archive is present and extracted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return testdata.Setup(cfg)
		},
	}
	fetchCmd.Flags().BoolVar(&cfg.UseLocalTestData, "use_local_test_data", false,
		"use local test data, skip downloading from URL/GitHub")

	prefetchCmd := &cobra.Command{
		Use:   "prefetch <url>...",
		Short: "Download model files into the shared model cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return prefetch(args)
		},
	}
	prefetchCmd.Flags().StringVar(&flagAuthToken, "auth_token", "",
		"bearer token passed in the Authorization header of the download requests")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report the size of the test-data and model caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printDirStatus("test data", testdata.Dir(cfg))
			printDirStatus("model cache", modelCacheDir())
			return nil
		},
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the test-data cache and leftover experiment directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clean()
		},
	}
	cleanCmd.Flags().BoolVar(&flagWithModels, "models", false,
		"also remove the shared model cache")

	rootCmd.AddCommand(fetchCmd, prefetchCmd, statusCmd, cleanCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func prefetch(urls []string) error {
	manager := downloader.New().MaxParallel(cfg.MaxParallelDownloads)
	if flagAuthToken != "" {
		manager.WithAuthToken(flagAuthToken)
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, url := range urls {
		target := filepath.Join(modelCacheDir(), path.Base(url))
		wg.Add(1)
		manager.Download(url, target, func(downloadedBytes, totalBytes int64, finished bool, err error) {
			if !finished {
				return
			}
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			fmt.Printf("%s: %s\n", target, humanize.Bytes(uint64(downloadedBytes)))
		})
	}
	wg.Wait()
	return firstErr
}

func printDirStatus(name, dir string) {
	size, numFiles, err := dirSize(dir)
	if err != nil {
		fmt.Printf("%s: %s (unreadable: %v)\n", name, dir, err)
		return
	}
	if numFiles == 0 {
		fmt.Printf("%s: %s (empty)\n", name, dir)
		return
	}
	fmt.Printf("%s: %s, %d file(s), %s\n", name, dir, numFiles, humanize.Bytes(uint64(size)))
}

func dirSize(dir string) (size int64, numFiles int, err error) {
	if !fsutil.MustFileExists(dir) {
		return 0, 0, nil
	}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		numFiles++
		return nil
	})
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to walk %q", dir)
	}
	return
}

func clean() error {
	targets := []string{testdata.Dir(cfg)}
	for _, dir := range cfg.CleanupDirs {
		targets = append(targets, filepath.Join(cfg.TestRoot, dir))
	}
	if flagWithModels {
		targets = append(targets, modelCacheDir())
	}
	for _, target := range targets {
		if !fsutil.MustFileExists(target) {
			continue
		}
		err := os.RemoveAll(target)
		if err != nil {
			return errors.Wrapf(err, "failed to remove %q", target)
		}
		fmt.Printf("removed %s\n", target)
	}
	return nil
}
