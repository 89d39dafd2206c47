package bundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// minCompressSize skips files too small to benefit from compression
const minCompressSize = 1024

var compressibleExts = map[string]bool{
	".js":   true,
	".css":  true,
	".map":  true,
	".json": true,
	".svg":  true,
	".html": true,
}

// Precompress writes gzip and zstd copies next to path and returns their
// paths. Small and binary files are skipped and lose any copies left by an
// earlier build.
func Precompress(path string) ([]string, error) {
	if !compressibleExts[filepath.Ext(path)] {
		return nil, removeCompressed(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() < minCompressSize {
		return nil, removeCompressed(path)
	}

	gzPath := path + ".gz"
	if err := compressFile(path, gzPath, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	}); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}

	zstPath := path + ".zst"
	if err := compressFile(path, zstPath, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}); err != nil {
		os.Remove(gzPath)
		return nil, fmt.Errorf("zstd: %w", err)
	}

	return []string{gzPath, zstPath}, nil
}

func removeCompressed(path string) error {
	for _, ext := range []string{".gz", ".zst"} {
		if err := os.Remove(path + ext); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", ext, err)
		}
	}
	return nil
}

func compressFile(srcPath, dstPath string, newWriter func(io.Writer) (io.WriteCloser, error)) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	enc, err := newWriter(dst)
	if err != nil {
		_ = dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	// Stream compress
	if _, err := io.Copy(enc, src); err != nil {
		if closeErr := enc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close encoder during error cleanup")
		}
		if closeErr := dst.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close destination during error cleanup")
		}
		os.Remove(dstPath) // Clean up partial file
		return fmt.Errorf("failed to compress: %w", err)
	}

	// Close encoder to flush
	if err := enc.Close(); err != nil {
		_ = dst.Close()
		os.Remove(dstPath)
		return fmt.Errorf("failed to flush encoder: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("failed to close destination: %w", err)
	}

	return nil
}
