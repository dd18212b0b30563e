package osmpbf

import (
	"math"

	"github.com/paulmach/osm"
)

const coordPrecision = 1e7 // granularity=100, lat_offset=lon_offset=0

func encodeCoord(deg float64) int64 {
	return int64(math.Round(deg * coordPrecision))
}

// stringTable interns tag keys/values (and relation member roles) and
// hands back their stringtable index, building the shared table that
// every primitive group in a block indexes into.
type stringTable struct {
	index map[string]uint32
	table []string
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]uint32)}
}

func (t *stringTable) intern(s string) uint32 {
	if idx, ok := t.index[s]; ok {
		return idx
	}
	t.table = append(t.table, s)
	idx := uint32(len(t.table)) // index 0 reserved, table is 1-based
	t.index[s] = idx
	return idx
}

func (t *stringTable) tagIDs(tags osm.Tags) (keys, vals []uint64) {
	keys = make([]uint64, 0, len(tags))
	vals = make([]uint64, 0, len(tags))
	for _, tg := range tags {
		keys = append(keys, uint64(t.intern(tg.Key)))
		vals = append(vals, uint64(t.intern(tg.Value)))
	}
	return keys, vals
}

// encodeNodeGroup writes one "nodes" PrimitiveGroup (plain, non-dense
// Node messages — simpler to emit correctly than delta-coded
// DenseNodes, at the cost of a larger file).
func encodeNodeGroup(t *stringTable, nodes []*osm.Node) []byte {
	g := newProtoWriter()
	for _, n := range nodes {
		keys, vals := t.tagIDs(n.Tags)

		nw := newProtoWriter()
		nw.svarint(1, int64(n.ID))
		nw.packedVarint(2, keys)
		nw.packedVarint(3, vals)
		nw.svarint(8, encodeCoord(n.Lat))
		nw.svarint(9, encodeCoord(n.Lon))

		g.message(1, nw)
	}
	return g.Bytes()
}

// encodeWayGroup writes one "ways" PrimitiveGroup. Refs are delta-coded
// per the wire format's packed sint64 convention.
func encodeWayGroup(t *stringTable, ways []*osm.Way) []byte {
	g := newProtoWriter()
	for _, w := range ways {
		keys, vals := t.tagIDs(w.Tags)

		ids := w.Nodes.NodeIDs()
		deltas := make([]int64, len(ids))
		var prev int64
		for i, id := range ids {
			deltas[i] = int64(id) - prev
			prev = int64(id)
		}

		ww := newProtoWriter()
		ww.varint(1, uint64(w.ID))
		ww.packedVarint(2, keys)
		ww.packedVarint(3, vals)
		ww.packedSvarint(8, deltas)

		g.message(3, ww)
	}
	return g.Bytes()
}

// memberTypeCode maps an osm.Type to the wire MemberType enum
// (NODE=0, WAY=1, RELATION=2).
func memberTypeCode(t osm.Type) uint64 {
	switch t {
	case osm.TypeNode:
		return 0
	case osm.TypeWay:
		return 1
	default:
		return 2
	}
}

// encodeRelationGroup writes one "relations" PrimitiveGroup. Member ids
// are delta-coded like way refs; roles are interned into the shared
// stringtable like tag keys/values.
func encodeRelationGroup(t *stringTable, relations []*osm.Relation) []byte {
	g := newProtoWriter()
	for _, r := range relations {
		keys, vals := t.tagIDs(r.Tags)

		roleIDs := make([]uint64, len(r.Members))
		memDeltas := make([]int64, len(r.Members))
		types := make([]uint64, len(r.Members))
		var prev int64
		for i, m := range r.Members {
			roleIDs[i] = uint64(t.intern(m.Role))
			memDeltas[i] = m.Ref - prev
			prev = m.Ref
			types[i] = memberTypeCode(m.Type)
		}

		rw := newProtoWriter()
		rw.varint(1, uint64(r.ID))
		rw.packedVarint(2, keys)
		rw.packedVarint(3, vals)
		rw.packedVarint(8, roleIDs)
		rw.packedSvarint(9, memDeltas)
		rw.packedVarint(10, types)

		g.message(4, rw)
	}
	return g.Bytes()
}
