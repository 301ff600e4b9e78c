package toc

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCompressed(t *testing.T, path string, wrap func(io.Writer) io.WriteCloser) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := wrap(f)
	_, err = io.WriteString(w, sampleTOC)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestCompression(t *testing.T) {
	assert.Equal(t, "gzip", Compression("toc.json.gz"))
	assert.Equal(t, "gzip", Compression("TOC.JSON.GZ"))
	assert.Equal(t, "zstd", Compression("toc.json.zst"))
	assert.Equal(t, "xz", Compression("toc.json.xz"))
	assert.Equal(t, "lz4", Compression("toc.json.lz4"))
	assert.Equal(t, "", Compression("toc.json"))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "toc.json")
	require.NoError(t, os.WriteFile(plain, []byte(sampleTOC), 0o644))

	gz := filepath.Join(dir, "toc.json.gz")
	writeCompressed(t, gz, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) })

	zst := filepath.Join(dir, "toc.json.zst")
	writeCompressed(t, zst, func(w io.Writer) io.WriteCloser {
		enc, err := zstd.NewWriter(w)
		require.NoError(t, err)
		return enc
	})

	lz := filepath.Join(dir, "toc.json.lz4")
	writeCompressed(t, lz, func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) })

	for _, path := range []string{plain, gz, zst, lz} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			rc, err := Open(path, 4096)
			require.NoError(t, err)

			parser := NewStreamParser(rc)
			structures := collect(t, parser)
			assert.Len(t, structures, 2)
			assert.Equal(t, "Test Entity", parser.Metadata().ReportingEntityName)
			require.NoError(t, rc.Close())
		})
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.json"), 0)
	assert.Error(t, err)

	// Plain JSON with a gzip extension fails at open time
	path := filepath.Join(dir, "bad.json.gz")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOC), 0o644))
	_, err = Open(path, 0)
	assert.Error(t, err)
}
