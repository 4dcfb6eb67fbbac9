/*
PURPOSE:
  Opens benchmark CSV inputs, transparently decompressing .gz, .zst and .lz4
  files, and fingerprints the input set.

REQUIREMENTS:
  Implementation-discovered:
  - Benchmark archives are often shipped compressed; the loaders should not care.
  - The batch report carries a fingerprint of the inputs so two runs can be
    compared without diffing the CSVs.

ARCHITECTURE INTEGRATION:
  - Called by: ingest loaders, internal/engine
  - Depends on: klauspost/compress (gzip, zstd), pierrec/lz4, cespare/xxhash

ERROR HANDLING:
  - Returns wrapped errors on open or header failure.
*/

package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressedExtensions lists the recognized compression suffixes.
var CompressedExtensions = []string{".gz", ".zst", ".lz4"}

// StripCompression removes a recognized compression suffix from name.
func StripCompression(name string) string {
	for _, ext := range CompressedExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// Open opens path for reading, decompressing by extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case ".lz4":
		return readCloser{Reader: lz4.NewReader(f), close: f.Close}, nil
	default:
		return f, nil
	}
}

// Find returns the files in dir matching pattern or pattern plus a
// compression suffix, sorted lexically.
func Find(dir, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	patterns := []string{pattern}
	for _, ext := range CompressedExtensions {
		patterns = append(patterns, pattern+ext)
	}
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("bad input pattern %q: %w", p, err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the lexically greatest path, which for timestamped result
// files is the most recent run.
func Latest(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return sorted[len(sorted)-1:]
}

// Fingerprint hashes the base names and raw bytes of paths in sorted order.
func Fingerprint(paths []string) (string, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	d := xxhash.New()
	for _, p := range sorted {
		f, err := os.Open(p)
		if err != nil {
			return "", err
		}
		d.WriteString(filepath.Base(p))
		d.Write([]byte{0})
		_, err = io.Copy(d, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", p, err)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}
