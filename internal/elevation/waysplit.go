package elevation

import (
	"math"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/metrics"
	"github.com/route-beacon/osm-transform/internal/pipeline"
)

type location struct {
	lon, lat float64
}

// WaySplitter inserts synthetic intermediate nodes along a way so that
// no gap between consecutive refs exceeds (ResolutionLon, ResolutionLat)
// in either axis. Synthetic nodes get ids from a private negative
// counter, starting at -1 and decrementing, so they can never collide
// with a real OSM node id. It relies on having already observed every
// endpoint node before the way that references it, which the PBF
// element order (nodes, then ways, then relations) guarantees.
type WaySplitter struct {
	ResolutionLon, ResolutionLat float64

	locationIndex map[osm.NodeID]location
	nextSynthetic int64
}

// NewWaySplitter builds a WaySplitter with the given maximum geographic
// step between consecutive way nodes.
func NewWaySplitter(resolutionLon, resolutionLat float64) *WaySplitter {
	return &WaySplitter{
		ResolutionLon: resolutionLon,
		ResolutionLat: resolutionLat,
		locationIndex: make(map[osm.NodeID]location),
		nextSynthetic: -1,
	}
}

func (*WaySplitter) Name() string { return "way_splitter" }

func (*WaySplitter) Flush(*pipeline.HandlerData) error { return nil }

func (s *WaySplitter) Handle(data *pipeline.HandlerData) error {
	for _, n := range data.Nodes {
		s.locationIndex[n.ID] = location{lon: n.Lon, lat: n.Lat}
	}

	var synthetic []*osm.Node
	for _, w := range data.Ways {
		synthetic = append(synthetic, s.splitWay(w)...)
	}
	data.Nodes = append(data.Nodes, synthetic...)
	return nil
}

func (s *WaySplitter) splitWay(w *osm.Way) []*osm.Node {
	if len(w.Nodes) < 2 {
		return nil
	}

	var synthetic []*osm.Node
	rebuilt := make(osm.WayNodes, 0, len(w.Nodes))
	rebuilt = append(rebuilt, w.Nodes[0])

	for i := 0; i+1 < len(w.Nodes); i++ {
		fromID, toID := w.Nodes[i].ID, w.Nodes[i+1].ID
		from, fromOK := s.locationIndex[fromID]
		to, toOK := s.locationIndex[toID]
		if !fromOK || !toOK {
			rebuilt = append(rebuilt, w.Nodes[i+1])
			continue
		}

		points := computeIntermediateLocations(from.lon, from.lat, to.lon, to.lat, s.ResolutionLon, s.ResolutionLat)
		for _, p := range points {
			id := osm.NodeID(s.nextSynthetic)
			s.nextSynthetic--
			node := &osm.Node{ID: id, Lon: p.lon, Lat: p.lat}
			s.locationIndex[id] = p
			synthetic = append(synthetic, node)
			rebuilt = append(rebuilt, osm.WayNode{ID: id})
		}
		rebuilt = append(rebuilt, w.Nodes[i+1])
	}
	w.Nodes = rebuilt

	if len(synthetic) > 0 {
		metrics.WaySplitInsertedTotal.WithLabelValues().Add(float64(len(synthetic)))
	}
	return synthetic
}

// computeIntermediateLocations linearly interpolates between (fromLon,
// fromLat) and (toLon, toLat) so no step exceeds (resLon, resLat),
// returning the n-1 intermediate points only (endpoints excluded).
// Ported from original_source's compute_intermediate_locations.
func computeIntermediateLocations(fromLon, fromLat, toLon, toLat, resLon, resLat float64) []location {
	dLon := toLon - fromLon
	dLat := toLat - fromLat

	n := math.Max(math.Abs(dLat)/resLat, math.Abs(dLon)/resLon)
	n = math.Max(n, 1.0)
	n = math.Ceil(n)

	stepLon := dLon / n
	stepLat := dLat / n

	count := int(n - 1)
	if count <= 0 {
		return nil
	}

	points := make([]location, 0, count)
	lon, lat := fromLon, fromLat
	for i := 0; i < count; i++ {
		lat += stepLat
		lon += stepLon
		points = append(points, location{lon: lon, lat: lat})
	}
	return points
}
