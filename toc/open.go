package toc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/xi2/xz"
	"go.uber.org/multierr"
)

// DefaultBufferSize is the read buffer used when Open is given a non-positive size.
const DefaultBufferSize = 64 * 1024 * 1024

// Compression names the codec Open will use for path, or "" for plain JSON.
func Compression(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return "gzip"
	case ".zst":
		return "zstd"
	case ".xz":
		return "xz"
	case ".lz4":
		return "lz4"
	}
	return ""
}

type layeredReader struct {
	io.Reader
	closers []io.Closer
}

// Close closes every layer, innermost last.
func (lr *layeredReader) Close() error {
	var err error
	for i := len(lr.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, lr.closers[i].Close())
	}
	return err
}

// Open opens a TOC file for streaming. The file is read through a buffer of
// bufferSize bytes and decompressed according to its extension.
func Open(path string, bufferSize int) (io.ReadCloser, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	lr := &layeredReader{
		Reader:  bufio.NewReaderSize(file, bufferSize),
		closers: []io.Closer{file},
	}

	switch Compression(path) {
	case "gzip":
		gz, err := gzip.NewReader(lr.Reader)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		lr.Reader = gz
		lr.closers = append(lr.closers, gz)
	case "zstd":
		zr, err := zstd.NewReader(lr.Reader)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		rc := zr.IOReadCloser()
		lr.Reader = rc
		lr.closers = append(lr.closers, rc)
	case "xz":
		xr, err := xz.NewReader(lr.Reader, xz.DefaultDictMax)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		lr.Reader = xr
	case "lz4":
		lr.Reader = lz4.NewReader(lr.Reader)
	}

	return lr, nil
}
