package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirCreatesNestedDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent on an existing directory.
	assert.NoError(t, EnsureDir(dir))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codes.csv")

	assert.False(t, FileExists(path))
	assert.False(t, FileExists(dir), "directories are not files")

	require.NoError(t, os.WriteFile(path, []byte("code\n"), 0o644))
	assert.True(t, FileExists(path))
}

func TestArchiveFileMovesWithTimestamp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "codes.csv")
	require.NoError(t, os.WriteFile(src, []byte("code\nPO-1\n"), 0o644))

	archiveDir := filepath.Join(dir, "archive")
	dst, err := ArchiveFile(src, archiveDir)
	require.NoError(t, err)

	assert.False(t, FileExists(src), "original must be gone")
	assert.True(t, FileExists(dst))
	assert.Regexp(t, `\d{8}_\d{6}_codes\.csv$`, dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "code\nPO-1\n", string(data))
}

func TestArchiveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := ArchiveFile(filepath.Join(dir, "nope.csv"), filepath.Join(dir, "archive"))
	assert.Error(t, err)
}
