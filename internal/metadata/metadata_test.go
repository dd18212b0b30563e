package metadata

import (
	"testing"
	"time"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

func TestRemoverClearsHistoryFieldsOnly(t *testing.T) {
	n := &osm.Node{
		ID:  1,
		Lat: 1.5,
		Lon: 2.5,
		Tags: osm.Tags{
			{Key: "highway", Value: "bus_stop"},
		},
		Info: osm.Info{
			Version:   3,
			Timestamp: time.Now(),
			Changeset: 42,
			Uid:       7,
			User:      "mapper",
		},
	}
	data := &pipeline.HandlerData{Nodes: []*osm.Node{n}}

	if err := (Remover{}).Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.Info.Version != 0 || !n.Info.Timestamp.IsZero() || n.Info.Changeset != 0 || n.Info.Uid != 0 || n.Info.User != "" {
		t.Fatalf("expected history fields cleared, got %+v", n.Info)
	}
	if n.ID != 1 || n.Lat != 1.5 || n.Lon != 2.5 || len(n.Tags) != 1 {
		t.Fatalf("expected id/coordinate/tags preserved, got %+v", n)
	}
}
