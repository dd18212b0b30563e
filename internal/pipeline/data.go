// Package pipeline implements the two-pass, chainable element-handler
// pipeline that streams OSM nodes/ways/relations through composable
// stages. A HandlerChain is driven over a PBF element stream in batches;
// each handler reads and mutates the shared HandlerData bundle in place.
package pipeline

import (
	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/nodeset"
)

// HighestNodeID bounds the node-id keyed bit-sets. Real-world OSM node ids
// stay well under this; it exists so nodeset.Set can be pre-sized once
// instead of growing one reallocation at a time during a large run.
const HighestNodeID = 12_000_000_000

// Counters tallies elements observed at various points in the chain. Each
// field is updated by an ElementCounter placed at the corresponding
// position (input, accepted, output).
type Counters struct {
	InputNodes, InputWays, InputRelations       int64
	AcceptedNodes, AcceptedWays, AcceptedRelations int64
	OutputNodes, OutputWays, OutputRelations     int64
}

// HandlerData is the mutable bundle threaded through a HandlerChain. A
// batch's three element slices are drained and refilled by the driver
// between dispatch cycles; the bit-sets and counters persist across
// batches and across the pass-1/pass-2 boundary.
type HandlerData struct {
	Nodes     []*osm.Node
	Ways      []*osm.Way
	Relations []*osm.Relation

	// NodeIDs records node ids referenced by a way/relation that survived
	// the routing filter in pass 1; consulted by the pass-2 node filter.
	NodeIDs *nodeset.Set
	// SkipEle records node ids that must not receive an elevation sample
	// because they belong to a bridge/tunnel/cutting/indoor way.
	SkipEle *nodeset.Set

	Counters *Counters
}

// NewHandlerData allocates a HandlerData with bit-sets pre-sized for
// HighestNodeID and zeroed counters.
func NewHandlerData() *HandlerData {
	return &HandlerData{
		NodeIDs:  nodeset.New(HighestNodeID),
		SkipEle:  nodeset.New(HighestNodeID),
		Counters: &Counters{},
	}
}

// ResetBatch clears the three element slices ahead of the next read cycle
// while preserving their backing arrays and leaving the bit-sets/counters
// untouched.
func (d *HandlerData) ResetBatch() {
	d.Nodes = d.Nodes[:0]
	d.Ways = d.Ways[:0]
	d.Relations = d.Relations[:0]
}

// Empty reports whether the current batch carries no elements at all.
func (d *HandlerData) Empty() bool {
	return len(d.Nodes) == 0 && len(d.Ways) == 0 && len(d.Relations) == 0
}
