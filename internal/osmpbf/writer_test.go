package osmpbf

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

func readAll(t *testing.T, path string) []any {
	t.Helper()
	r, err := OpenReader(path, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var out []any
	for {
		elem, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, elem)
	}
	return out
}

func TestSimpleWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.osm.pbf")

	w, err := NewSimpleWriter(path)
	if err != nil {
		t.Fatalf("NewSimpleWriter: %v", err)
	}

	data := &pipeline.HandlerData{
		Nodes: []*osm.Node{
			{ID: 1, Lat: 52.1, Lon: 13.4, Tags: osm.Tags{{Key: "country", Value: "DE"}}},
			{ID: 2, Lat: 52.2, Lon: 13.5},
		},
		Ways: []*osm.Way{
			{ID: 10, Tags: osm.Tags{{Key: "highway", Value: "primary"}}, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}},
		},
		Relations: []*osm.Relation{
			{ID: 100, Tags: osm.Tags{{Key: "route", Value: "bus"}}, Members: osm.Members{{Type: osm.TypeWay, Ref: 10, Role: "outer"}}},
		},
	}

	if err := w.Handle(data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	elems := readAll(t, path)
	var nodes, ways, relations int
	for _, e := range elems {
		switch v := e.(type) {
		case *osm.Node:
			nodes++
			if v.ID == 1 {
				if len(v.Tags) != 1 || v.Tags[0].Key != "country" || v.Tags[0].Value != "DE" {
					t.Fatalf("node 1 tags not round-tripped: %+v", v.Tags)
				}
			}
		case *osm.Way:
			ways++
			if v.ID != 10 {
				t.Fatalf("expected way id 10, got %d", v.ID)
			}
			ids := v.Nodes.NodeIDs()
			if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
				t.Fatalf("way refs not round-tripped: %v", ids)
			}
		case *osm.Relation:
			relations++
			if len(v.Members) != 1 || v.Members[0].Ref != 10 || v.Members[0].Role != "outer" {
				t.Fatalf("relation members not round-tripped: %+v", v.Members)
			}
		}
	}
	if nodes != 2 || ways != 1 || relations != 1 {
		t.Fatalf("expected 2 nodes, 1 way, 1 relation; got %d/%d/%d", nodes, ways, relations)
	}
}

func TestSimpleWriterEmptyBatchWritesNoDataBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.osm.pbf")
	w, err := NewSimpleWriter(path)
	if err != nil {
		t.Fatalf("NewSimpleWriter: %v", err)
	}
	if err := w.Handle(&pipeline.HandlerData{}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	elems := readAll(t, path)
	if len(elems) != 0 {
		t.Fatalf("expected no elements, got %d", len(elems))
	}
}

func TestSimpleWriterCompressedRoundTrip(t *testing.T) {
	SetCompressionLevel(6)
	defer SetCompressionLevel(0)

	path := filepath.Join(t.TempDir(), "compressed.osm.pbf")
	w, err := NewSimpleWriter(path)
	if err != nil {
		t.Fatalf("NewSimpleWriter: %v", err)
	}
	data := &pipeline.HandlerData{
		Nodes: []*osm.Node{{ID: 1, Lat: 10, Lon: 20}},
	}
	if err := w.Handle(data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	elems := readAll(t, path)
	if len(elems) != 1 {
		t.Fatalf("expected 1 element, got %d", len(elems))
	}
	n, ok := elems[0].(*osm.Node)
	if !ok || n.ID != 1 {
		t.Fatalf("expected node id 1, got %+v", elems[0])
	}
}

func TestSplittingWriterMergesWaysAfterNodes(t *testing.T) {
	dir := t.TempDir()
	nodesPath := filepath.Join(dir, "nodes.osm.pbf")
	waysPath := filepath.Join(dir, "ways.osm.pbf")

	w, err := NewSplittingWriter(nodesPath, waysPath)
	if err != nil {
		t.Fatalf("NewSplittingWriter: %v", err)
	}

	batch1 := &pipeline.HandlerData{
		Nodes: []*osm.Node{{ID: 1, Lat: 1, Lon: 1}},
		Ways:  []*osm.Way{{ID: 10, Nodes: osm.WayNodes{{ID: 1}}}},
	}
	if err := w.Handle(batch1); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// A later batch produces a synthetic node that is, by construction,
	// only known after the way referencing it was already buffered for
	// output — exactly the ordering hazard SplittingWriter exists for.
	batch2 := &pipeline.HandlerData{
		Nodes: []*osm.Node{{ID: -1, Lat: 1.5, Lon: 1.5}},
	}
	if err := w.Flush(batch2); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	elems := readAll(t, nodesPath)
	sawNode, sawWay := false, false
	for _, e := range elems {
		switch v := e.(type) {
		case *osm.Node:
			if sawWay {
				t.Fatalf("node %d appeared after a way in merged output", v.ID)
			}
			sawNode = true
		case *osm.Way:
			if v.ID != 10 {
				t.Fatalf("expected way id 10, got %d", v.ID)
			}
			sawWay = true
		}
	}
	if !sawNode || !sawWay {
		t.Fatalf("expected both nodes and ways in merged output")
	}
}
