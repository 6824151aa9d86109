// Package readio decodes signal samples, seed hits and read records, and streams results as JSONL.
package readio

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Open returns a reader for path. "-" reads stdin and a ".gz" suffix is decompressed.
func Open(path string) (io.ReadCloser, error) {
	if path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	if !strings.HasSuffix(path, ".gz") {
		return fh, nil
	}

	gr, err := gzip.NewReader(fh)
	if err != nil {
		fh.Close()

		return nil, fmt.Errorf("open gzip input %s: %w", path, err)
	}

	return struct {
		io.Reader
		io.Closer
	}{Reader: gr, Closer: fh}, nil
}
