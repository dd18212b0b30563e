package collect

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/nodeset"
	"github.com/route-beacon/osm-transform/internal/pipeline"
)

func TestCollectorRecordsWayRefs(t *testing.T) {
	data := &pipeline.HandlerData{
		Ways: []*osm.Way{
			{ID: 1, Nodes: osm.WayNodes{{ID: 10}, {ID: 11}, {ID: 12}}},
		},
		NodeIDs: nodeset.New(0),
	}
	if err := (ReferencedNodeIDCollector{}).Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []uint64{10, 11, 12} {
		if !data.NodeIDs.Get(id) {
			t.Fatalf("expected node %d to be recorded", id)
		}
	}
	if data.NodeIDs.Get(13) {
		t.Fatalf("expected node 13 to be absent")
	}
}

func TestCollectorRecordsRelationNodeMembersOnly(t *testing.T) {
	data := &pipeline.HandlerData{
		Relations: []*osm.Relation{
			{ID: 1, Members: []osm.Member{
				{Type: osm.TypeNode, Ref: 20},
				{Type: osm.TypeWay, Ref: 21},
				{Type: osm.TypeRelation, Ref: 22},
			}},
		},
		NodeIDs: nodeset.New(0),
	}
	if err := (ReferencedNodeIDCollector{}).Handle(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !data.NodeIDs.Get(20) {
		t.Fatalf("expected node member 20 to be recorded")
	}
	if data.NodeIDs.Get(21) || data.NodeIDs.Get(22) {
		t.Fatalf("expected way/relation members to be ignored")
	}
}
