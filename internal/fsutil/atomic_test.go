package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.bin")

	require.NoError(t, WriteAtomic(path, []byte("first"), 0o600))
	require.NoError(t, WriteAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files left behind")
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "bundle")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "objects", "ab"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "objects", "ab", "blob"), []byte("pdf"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "tlog"), []byte("log"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, TempPrefix+"junk"), []byte("x"), 0o600))

	require.NoError(t, CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "objects", "ab", "blob"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(data))
	assert.FileExists(t, filepath.Join(dst, "tlog"))
	assert.NoFileExists(t, filepath.Join(dst, TempPrefix+"junk"))
}
