package country

import (
	"strings"
	"testing"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

const testCSV = "id;name;geo\n" +
	"NL;Netherlands;POLYGON((4 51,5 51,5 52,4 52,4 51))\n"

const southernTestCSV = "id;name;geo\n" +
	"AR;Argentina;POLYGON((-65 -35,-64 -35,-64 -34,-65 -34,-65 -35))\n"

func TestLoadAndLookupFullCell(t *testing.T) {
	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, ok := m.Lookup(51.5, 4.5)
	if !ok {
		t.Fatalf("expected lookup ok")
	}
	if len(ids) != 1 || ids[0] != "NL" {
		t.Fatalf("expected [NL], got %v", ids)
	}
}

func TestLookupOutsideAnyCountryIsEmpty(t *testing.T) {
	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, ok := m.Lookup(10.5, 10.5)
	if !ok {
		t.Fatalf("expected lookup ok away from a pole")
	}
	if len(ids) != 0 {
		t.Fatalf("expected no countries, got %v", ids)
	}
}

func TestLookupAtPoleIsUntagged(t *testing.T) {
	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.Lookup(90, 0); ok {
		t.Fatalf("expected pole lookup to report ok=false")
	}
}

func TestHandlerAppendsEmptyCountryTagWhenUncovered(t *testing.T) {
	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := &osm.Node{ID: 1, Lat: 10.5, Lon: 10.5}
	data := &pipeline.HandlerData{Nodes: []*osm.Node{n}}
	h := &Handler{Mapping: m}
	if err := h.Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Tags) != 1 || n.Tags[0].Key != "country" || n.Tags[0].Value != "" {
		t.Fatalf("expected an empty country tag, got %+v", n.Tags)
	}
}

func TestLookupFloorsNegativeCoordinatesInsteadOfTruncating(t *testing.T) {
	m, err := load(strings.NewReader(southernTestCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// -34.5 truncates toward zero to -34, which would miss this cell;
	// floored it lands in -35..-34, the cell the polygon actually covers.
	ids, ok := m.Lookup(-34.5, -64.5)
	if !ok {
		t.Fatalf("expected lookup ok")
	}
	if len(ids) != 1 || ids[0] != "AR" {
		t.Fatalf("expected [AR], got %v", ids)
	}
}

func TestHandlerLeavesPoleNodeUntagged(t *testing.T) {
	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := &osm.Node{ID: 1, Lat: 90, Lon: 0}
	data := &pipeline.HandlerData{Nodes: []*osm.Node{n}}
	h := &Handler{Mapping: m}
	if err := h.Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Tags) != 0 {
		t.Fatalf("expected no tags appended at a pole, got %+v", n.Tags)
	}
}
