// Package osmpbf implements this pipeline's PBF boundary: reading
// wraps github.com/paulmach/osm/osmpbf's scanner, while writing (for
// which no library in the ecosystem exists) is a compact hand-rolled
// uncompressed-blob encoder.
package osmpbf

import (
	"context"
	"fmt"
	"io"
	"os"

	pbf "github.com/paulmach/osm/osmpbf"
)

// Reader streams elements out of a PBF file in the node/way/relation
// order the format mandates, satisfying pipeline.ElementReader.
type Reader struct {
	file    *os.File
	scanner *pbf.Scanner
	cancel  context.CancelFunc
}

// OpenReader opens path and prepares to scan it with the given number
// of decode workers (passed straight to the underlying scanner).
func OpenReader(path string, numProcs int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("osmpbf: opening %s: %w", path, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	scanner := pbf.New(ctx, f, numProcs)
	return &Reader{file: f, scanner: scanner, cancel: cancel}, nil
}

// Next returns the next *osm.Node, *osm.Way, or *osm.Relation in the
// stream, or io.EOF once exhausted.
func (r *Reader) Next() (any, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("osmpbf: scanning: %w", err)
		}
		return nil, io.EOF
	}
	return r.scanner.Object(), nil
}

// Close releases the scanner and the underlying file.
func (r *Reader) Close() error {
	r.cancel()
	scanErr := r.scanner.Close()
	fileErr := r.file.Close()
	if scanErr != nil {
		return scanErr
	}
	return fileErr
}
