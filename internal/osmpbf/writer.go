package osmpbf

import (
	"fmt"
	"os"
	"time"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/metrics"
	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// blockWriter is the shared low-level sink both output handlers use: a
// file with an OSMHeader blob written once, just before the first
// OSMData blob, followed by one OSMData blob per WriteBatch call that
// carries any elements. A writer that never receives an element leaves
// an empty file.
type blockWriter struct {
	f             *os.File
	headerWritten bool
}

func openBlockWriter(path string) (*blockWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("osmpbf: creating %s: %w", path, err)
	}
	return &blockWriter{f: f}, nil
}

func (bw *blockWriter) writeHeaderOnce() error {
	if bw.headerWritten {
		return nil
	}
	if err := writeBlob(bw.f, blobHeaderTypeHeader, writeHeaderBlock()); err != nil {
		return err
	}
	bw.headerWritten = true
	return nil
}

func (bw *blockWriter) WriteBatch(nodes []*osm.Node, ways []*osm.Way, relations []*osm.Relation) error {
	if len(nodes) == 0 && len(ways) == 0 && len(relations) == 0 {
		return nil
	}
	if err := bw.writeHeaderOnce(); err != nil {
		return err
	}

	t := newStringTable()
	var groups [][]byte
	if len(nodes) > 0 {
		groups = append(groups, encodeNodeGroup(t, nodes))
	}
	if len(ways) > 0 {
		groups = append(groups, encodeWayGroup(t, ways))
	}
	if len(relations) > 0 {
		groups = append(groups, encodeRelationGroup(t, relations))
	}

	payload := writePrimitiveBlock(t.table, groups)
	return writeBlob(bw.f, blobHeaderTypeData, payload)
}

func (bw *blockWriter) Close() error {
	return bw.f.Close()
}

// SimpleWriter writes every batch straight through, in arrival order,
// into a single PBF file. Used when elevation way-splitting is off, so
// strict node/way/relation ordering is never at risk.
type SimpleWriter struct {
	pipeline.NoFlush
	bw *blockWriter
}

// NewSimpleWriter opens path for writing.
func NewSimpleWriter(path string) (*SimpleWriter, error) {
	bw, err := openBlockWriter(path)
	if err != nil {
		return nil, err
	}
	return &SimpleWriter{bw: bw}, nil
}

func (*SimpleWriter) Name() string { return "simple_output_handler" }

func (w *SimpleWriter) Handle(data *pipeline.HandlerData) error {
	if err := w.bw.WriteBatch(data.Nodes, data.Ways, data.Relations); err != nil {
		return err
	}
	data.Nodes, data.Ways, data.Relations = nil, nil, nil
	return nil
}

// Close flushes and closes the writer; call it after FlushAll has run.
func (w *SimpleWriter) Close() error { return w.bw.Close() }

// SplittingWriter writes nodes into one file and ways+relations into a
// second, since elevation way-splitting can produce a synthetic node
// after the way that references it has already been buffered for
// output. On Flush, it closes the ways/relations file, rereads it back
// (through the same ecosystem scanner the Reader type uses — the file
// this package writes is standards-compliant PBF, so nothing
// home-grown is needed to read it back), and appends its contents to
// the nodes file, producing a single output obeying PBF's mandated
// element order.
type SplittingWriter struct {
	nodesPath, waysPath string
	nodes               *blockWriter
	ways                *blockWriter
}

// NewSplittingWriter opens both backing files. waysPath is a scratch
// file removed once merged into nodesPath during Flush.
func NewSplittingWriter(nodesPath, waysPath string) (*SplittingWriter, error) {
	nodes, err := openBlockWriter(nodesPath)
	if err != nil {
		return nil, err
	}
	ways, err := openBlockWriter(waysPath)
	if err != nil {
		nodes.Close()
		return nil, err
	}
	return &SplittingWriter{nodesPath: nodesPath, waysPath: waysPath, nodes: nodes, ways: ways}, nil
}

func (*SplittingWriter) Name() string { return "splitting_output_handler" }

func (w *SplittingWriter) Handle(data *pipeline.HandlerData) error {
	if err := w.nodes.WriteBatch(data.Nodes, nil, nil); err != nil {
		return err
	}
	if err := w.ways.WriteBatch(nil, data.Ways, data.Relations); err != nil {
		return err
	}
	data.Nodes, data.Ways, data.Relations = nil, nil, nil
	return nil
}

// Flush closes the ways/relations file, rereads every element out of
// it, and re-emits them into the nodes file so the merged output
// regains strict node-before-way-before-relation ordering.
func (w *SplittingWriter) Flush(data *pipeline.HandlerData) error {
	start := time.Now()
	if err := w.nodes.WriteBatch(data.Nodes, nil, nil); err != nil {
		return err
	}
	if err := w.ways.WriteBatch(nil, data.Ways, data.Relations); err != nil {
		return err
	}
	data.Nodes, data.Ways, data.Relations = nil, nil, nil

	if err := w.ways.Close(); err != nil {
		return err
	}

	r, err := OpenReader(w.waysPath, 1)
	if err != nil {
		return fmt.Errorf("osmpbf: reopening %s for merge: %w", w.waysPath, err)
	}
	defer r.Close()

	const mergeBatch = 4096
	var ways []*osm.Way
	var relations []*osm.Relation
	flushMerge := func() error {
		if len(ways) == 0 && len(relations) == 0 {
			return nil
		}
		err := w.nodes.WriteBatch(nil, ways, relations)
		ways, relations = ways[:0], relations[:0]
		return err
	}

	for {
		elem, err := r.Next()
		if err != nil {
			break
		}
		switch e := elem.(type) {
		case *osm.Way:
			ways = append(ways, e)
		case *osm.Relation:
			relations = append(relations, e)
		}
		if len(ways)+len(relations) >= mergeBatch {
			if err := flushMerge(); err != nil {
				return err
			}
		}
	}
	if err := flushMerge(); err != nil {
		return err
	}

	metrics.OutputFlushDuration.WithLabelValues("splitting_output_handler").Observe(time.Since(start).Seconds())
	return os.Remove(w.waysPath)
}

// Close closes the merged nodes file; call it after FlushAll has run.
func (w *SplittingWriter) Close() error { return w.nodes.Close() }
