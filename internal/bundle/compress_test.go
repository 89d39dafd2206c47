package bundle

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestPrecompress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.js")
	content := []byte(strings.Repeat("console.log('hello world');\n", 200))
	require.NoError(t, os.WriteFile(path, content, 0600))

	files, err := Precompress(path)
	require.NoError(t, err)
	require.Equal(t, []string{path + ".gz", path + ".zst"}, files)

	gzFile, err := os.Open(path + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()

	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, content, decoded)

	zstFile, err := os.ReadFile(path + ".zst")
	require.NoError(t, err)
	require.Less(t, len(zstFile), len(content))

	dec, err := zstd.NewReader(bytes.NewReader(zstFile))
	require.NoError(t, err)
	defer dec.Close()
	decoded, err = io.ReadAll(dec)
	require.NoError(t, err)
	require.Equal(t, content, decoded)
}

func TestPrecompress_skipped(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.js")
	require.NoError(t, os.WriteFile(small, []byte("console.log(1)"), 0600))

	image := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(image, bytes.Repeat([]byte{0x89}, 4096), 0600))

	for _, path := range []string{small, image} {
		files, err := Precompress(path)
		require.NoError(t, err)
		require.Nil(t, files)
		require.NoFileExists(t, path+".gz")
		require.NoFileExists(t, path+".zst")
	}
}

func TestPrecompress_removesStaleCopies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.js")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("console.log('hello world');\n", 200)), 0600))

	files, err := Precompress(path)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// the next build shrinks the output below the threshold
	require.NoError(t, os.WriteFile(path, []byte("console.log(1)"), 0600))

	files, err = Precompress(path)
	require.NoError(t, err)
	require.Nil(t, files)
	require.NoFileExists(t, path+".gz")
	require.NoFileExists(t, path+".zst")
}

func TestPrecompress_missingFile(t *testing.T) {
	_, err := Precompress(filepath.Join(t.TempDir(), "missing.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
