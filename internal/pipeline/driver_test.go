package pipeline

import (
	"io"
	"testing"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/nodeset"
)

// lightHandlerData builds a HandlerData with its bit-sets unsized, unlike
// NewHandlerData, which pre-sizes them for HighestNodeID — far more
// allocation than these batching-focused tests need.
func lightHandlerData() *HandlerData {
	return &HandlerData{
		NodeIDs:  nodeset.New(0),
		SkipEle:  nodeset.New(0),
		Counters: &Counters{},
	}
}

type sliceReader struct {
	elems []any
	pos   int
}

func (r *sliceReader) Next() (any, error) {
	if r.pos >= len(r.elems) {
		return nil, io.EOF
	}
	e := r.elems[r.pos]
	r.pos++
	return e, nil
}

func (r *sliceReader) Close() error { return nil }

type batchRecorder struct {
	NoFlush
	batches *[][3]int
}

func (batchRecorder) Name() string { return "batch_recorder" }

func (b batchRecorder) Handle(data *HandlerData) error {
	*b.batches = append(*b.batches, [3]int{len(data.Nodes), len(data.Ways), len(data.Relations)})
	return nil
}

func nodes(n int) []any {
	elems := make([]any, n)
	for i := range elems {
		elems[i] = &osm.Node{ID: osm.NodeID(i + 1)}
	}
	return elems
}

func TestDriverRunBatchesByBatchSize(t *testing.T) {
	var batches [][3]int
	chain := NewChain("test", nil, batchRecorder{batches: &batches})
	driver := &Driver{Chain: chain, BatchSize: 3}

	reader := &sliceReader{elems: nodes(7)}
	data := lightHandlerData()
	if err := driver.Run(reader, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 7 nodes at batch size 3: dispatches of 3, 3, then 1 remaining.
	if len(batches) != 3 {
		t.Fatalf("expected 3 dispatches, got %d: %v", len(batches), batches)
	}
	if batches[0][0] != 3 || batches[1][0] != 3 || batches[2][0] != 1 {
		t.Fatalf("expected batch sizes [3 3 1], got %v", batches)
	}
}

func TestDriverRunZeroBatchSizeExhaustsInOneDispatch(t *testing.T) {
	var batches [][3]int
	chain := NewChain("test", nil, batchRecorder{batches: &batches})
	driver := &Driver{Chain: chain, BatchSize: 0}

	reader := &sliceReader{elems: nodes(5)}
	data := lightHandlerData()
	if err := driver.Run(reader, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batches) != 1 || batches[0][0] != 5 {
		t.Fatalf("expected a single dispatch of 5 nodes, got %v", batches)
	}
}

func TestDriverRunCallsFlushAllAfterStreamEnds(t *testing.T) {
	chain := NewChain("test", nil, flushAppender{name: "producer", add: 4})
	driver := &Driver{Chain: chain, BatchSize: 2}

	reader := &sliceReader{elems: nodes(2)}
	data := lightHandlerData()
	if err := driver.Run(reader, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Nodes) != 4 {
		t.Fatalf("expected Flush to have appended 4 nodes, got %d", len(data.Nodes))
	}
}
