package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIPFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"readme.txt": "GeoNames postal codes",
		"US.txt":     "US\t92101\tSan Diego\n",
	})

	destDir := t.TempDir()
	path, err := ExtractZIPFile(zipPath, "US.txt", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "US.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "US\t92101\tSan Diego\n", string(data))
}

func TestExtractZIPFile_Missing(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"readme.txt": "x"})

	_, err := ExtractZIPFile(zipPath, "US.txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}

func TestExtractZIPFile_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../evil.txt": "x"})

	_, err := ExtractZIPFile(zipPath, "../evil.txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIPFile_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIPFile(path, "US.txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open archive")
}
