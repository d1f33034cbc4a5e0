package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/mltest/pkg/support/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	exists, err := fsutil.FileExists(dir)
	require.NoError(t, err)
	assert.True(t, exists, "temp dir should exist")

	exists, err = fsutil.FileExists(filepath.Join(dir, "no_such_file"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, fsutil.MustFileExists(dir))
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sized")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
	assert.Equal(t, int64(10), fsutil.FileSize(path))
	assert.Equal(t, int64(-1), fsutil.FileSize(filepath.Join(dir, "absent")))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from")
	to := filepath.Join(dir, "to")
	contents := []byte("some contents\n")
	require.NoError(t, os.WriteFile(from, contents, 0640))
	require.NoError(t, fsutil.CopyFile(from, to))
	got, err := os.ReadFile(to)
	require.NoError(t, err)
	assert.Equal(t, contents, got)

	err = fsutil.CopyFile(filepath.Join(dir, "absent"), to)
	require.Error(t, err)
}

func TestReplaceTildeInDir(t *testing.T) {
	got, err := fsutil.ReplaceTildeInDir("/absolute/path")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path", got)

	got, err = fsutil.ReplaceTildeInDir("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err = fsutil.ReplaceTildeInDir("~/sub/dir")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sub/dir"), got)
}

func TestByteCountIEC(t *testing.T) {
	assert.Equal(t, "512 B", fsutil.ByteCountIEC(512))
	assert.Equal(t, "1.0 KiB", fsutil.ByteCountIEC(1024))
	assert.Equal(t, "1.5 MiB", fsutil.ByteCountIEC(3*512*1024))
	assert.Equal(t, "2.0 GiB", fsutil.ByteCountIEC(2*1024*1024*1024))
}
