package elevation

import (
	"math"
	"strconv"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/metrics"
	"github.com/route-beacon/osm-transform/internal/nodeset"
	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// Enricher buffers nodes per covering raster and drains a raster's
// buffer once it reaches BatchSize, or once the sum across every
// raster's buffer reaches TotalBufferSize, or once the input stream
// ends. Draining samples each node's elevation and pushes an ele tag,
// except for nodes flagged in skip_ele, which still pass through the
// buffer (so their position relative to sampled siblings is preserved)
// but are never sampled.
//
// A node with no covering raster is emitted immediately; it never
// enters a buffer, since nothing would ever trigger its release.
//
// Every buffer is also drained whenever a batch carries ways or
// relations, so no buffered node is emitted after a way or relation
// that may reference it.
type Enricher struct {
	Manager         *Manager
	BatchSize       int
	TotalBufferSize int

	buffers      map[RasterSource][]*osm.Node
	totalBuffered int
}

// NewEnricher builds an Enricher over manager with the given batch and
// total buffer thresholds.
func NewEnricher(manager *Manager, batchSize, totalBufferSize int) *Enricher {
	return &Enricher{
		Manager:         manager,
		BatchSize:       batchSize,
		TotalBufferSize: totalBufferSize,
		buffers:         make(map[RasterSource][]*osm.Node),
	}
}

func (*Enricher) Name() string { return "buffering_elevation_enricher" }

func (e *Enricher) Handle(data *pipeline.HandlerData) error {
	var out []*osm.Node
	for _, n := range data.Nodes {
		r := e.Manager.For(n.Lat, n.Lon)
		if r == nil {
			metrics.ElevationMissesTotal.WithLabelValues("no_raster").Inc()
			out = append(out, n)
			continue
		}
		e.buffers[r] = append(e.buffers[r], n)
		e.totalBuffered++
		if len(e.buffers[r]) >= e.BatchSize {
			out = append(out, e.drain(r, data.SkipEle)...)
		}
	}
	if len(data.Ways) > 0 || len(data.Relations) > 0 {
		out = append(out, e.drainAll(data.SkipEle)...)
	} else if e.TotalBufferSize > 0 && e.totalBuffered >= e.TotalBufferSize {
		out = append(out, e.drainAll(data.SkipEle)...)
	}
	data.Nodes = out
	return nil
}

func (e *Enricher) Flush(data *pipeline.HandlerData) error {
	data.Nodes = append(data.Nodes, e.drainAll(data.SkipEle)...)
	return nil
}

func (e *Enricher) drain(r RasterSource, skip *nodeset.Set) []*osm.Node {
	nodes := e.buffers[r]
	delete(e.buffers, r)
	e.totalBuffered -= len(nodes)

	label := rasterLabel(r)
	metrics.ElevationBatchSize.WithLabelValues(label).Observe(float64(len(nodes)))

	for _, n := range nodes {
		if skip.Get(uint64(n.ID)) {
			continue
		}
		e.sample(n, r, label)
	}
	return nodes
}

func (e *Enricher) drainAll(skip *nodeset.Set) []*osm.Node {
	var out []*osm.Node
	for r := range e.buffers {
		out = append(out, e.drain(r, skip)...)
	}
	return out
}

func (e *Enricher) sample(n *osm.Node, r RasterSource, label string) {
	elev, ok := r.Sample(n.Lat, n.Lon)
	if !ok {
		metrics.ElevationMissesTotal.WithLabelValues("out_of_bounds").Inc()
		return
	}
	setEleTag(n, elev)
	metrics.ElevationSamplesTotal.WithLabelValues(label).Inc()
}

func setEleTag(n *osm.Node, meters float64) {
	value := strconv.FormatInt(int64(math.Round(meters)), 10)
	for i, t := range n.Tags {
		if t.Key == "ele" {
			n.Tags[i].Value = value
			return
		}
	}
	n.Tags = append(n.Tags, osm.Tag{Key: "ele", Value: value})
}

// rasterLabel gives a GeoTIFF raster a stable metric label without
// requiring RasterSource to expose one itself.
func rasterLabel(r RasterSource) string {
	if g, ok := r.(*GeoTIFF); ok {
		return g.path
	}
	return "unknown"
}
