// Package collect implements the referenced-node-id collector that
// drives pass 1's node_ids set: every node id mentioned by a surviving
// way's refs, or by a node member of a surviving relation.
package collect

import (
	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// ReferencedNodeIDCollector records, in data.NodeIDs, every node id
// referenced by a way or by a node member of a relation that has
// already survived the routing filter earlier in the chain.
type ReferencedNodeIDCollector struct {
	pipeline.NoFlush
}

func (ReferencedNodeIDCollector) Name() string { return "referenced_node_id_collector" }

func (ReferencedNodeIDCollector) Handle(data *pipeline.HandlerData) error {
	for _, w := range data.Ways {
		for _, id := range w.Nodes.NodeIDs() {
			data.NodeIDs.Set(uint64(id), true)
		}
	}
	for _, r := range data.Relations {
		for _, m := range r.Members {
			if m.Type == osm.TypeNode {
				data.NodeIDs.Set(uint64(m.Ref), true)
			}
		}
	}
	return nil
}
