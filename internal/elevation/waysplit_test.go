package elevation

import (
	"math"
	"testing"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeIntermediateLocationsNoneNeeded(t *testing.T) {
	points := computeIntermediateLocations(-1, 0, 0, 1, 1.0, 1.0)
	if len(points) != 0 {
		t.Fatalf("expected no intermediate points, got %d", len(points))
	}
}

func TestComputeIntermediateLocationsOneNeeded(t *testing.T) {
	points := computeIntermediateLocations(-1, 0, 0, 1, 0.5, 0.5)
	if len(points) != 1 {
		t.Fatalf("expected 1 intermediate point, got %d", len(points))
	}
	if !almostEqual(points[0].lon, -0.5) || !almostEqual(points[0].lat, 0.5) {
		t.Fatalf("expected (-0.5, 0.5), got %+v", points[0])
	}
}

func TestComputeIntermediateLocationsMultiple(t *testing.T) {
	points := computeIntermediateLocations(-1, 0, 0, 1, 0.5, 0.3)
	if len(points) != 3 {
		t.Fatalf("expected 3 intermediate points, got %d", len(points))
	}
	want := []location{{-0.75, 0.25}, {-0.50, 0.50}, {-0.25, 0.75}}
	for i, w := range want {
		if !almostEqual(points[i].lon, w.lon) || !almostEqual(points[i].lat, w.lat) {
			t.Fatalf("point %d: expected %+v, got %+v", i, w, points[i])
		}
	}
}

func TestComputeIntermediateLocationsZeroLength(t *testing.T) {
	points := computeIntermediateLocations(-1, 0, -1, 0, 1.0, 1.0)
	if len(points) != 0 {
		t.Fatalf("expected no intermediate points for a zero-length segment")
	}
}

func TestWaySplitterInsertsSyntheticNodes(t *testing.T) {
	s := NewWaySplitter(0.5, 0.5)
	n1 := &osm.Node{ID: 1, Lon: -1, Lat: 0}
	n2 := &osm.Node{ID: 2, Lon: 0, Lat: 1}
	w := &osm.Way{ID: 1, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}}

	data := &pipeline.HandlerData{
		Nodes: []*osm.Node{n1, n2},
		Ways:  []*osm.Way{w},
	}
	if err := s.Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.Nodes) != 3 {
		t.Fatalf("expected way to gain one synthetic ref, got %d nodes", len(w.Nodes))
	}
	if w.Nodes[1].ID >= 0 {
		t.Fatalf("expected synthetic node id to be negative, got %d", w.Nodes[1].ID)
	}
	if len(data.Nodes) != 3 {
		t.Fatalf("expected synthetic node appended to batch, got %d nodes", len(data.Nodes))
	}
}

func TestWaySplitterNoSplitWhenWithinResolution(t *testing.T) {
	s := NewWaySplitter(1.0, 1.0)
	n1 := &osm.Node{ID: 1, Lon: 0, Lat: 0}
	n2 := &osm.Node{ID: 2, Lon: 0.1, Lat: 0.1}
	w := &osm.Way{ID: 1, Nodes: osm.WayNodes{{ID: 1}, {ID: 2}}}

	data := &pipeline.HandlerData{Nodes: []*osm.Node{n1, n2}, Ways: []*osm.Way{w}}
	if err := s.Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.Nodes) != 2 {
		t.Fatalf("expected no synthetic nodes inserted, got %d way nodes", len(w.Nodes))
	}
}
