// Package filter implements the tag- and id-based predicates that decide
// which ways, relations, and nodes survive each pass of the pipeline.
package filter

import (
	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

var routingGoodKeys = map[string]bool{
	"highway": true,
	"route":   true,
}

var routingGoodKV = map[string]string{
	"railway":          "platform",
	"public_transport": "platform",
	"man_made":         "pier",
}

var routingBadKeys = map[string]bool{
	"building":      true,
	"landuse":       true,
	"boundary":      true,
	"natural":       true,
	"place":         true,
	"waterway":      true,
	"aeroway":       true,
	"aviation":      true,
	"military":      true,
	"power":         true,
	"communication": true,
	"man_made":      true,
}

// RoutingFilter keeps ways and relations likely to matter for routing and
// drops the rest; nodes pass through untouched. An element is kept if any
// of three predicates holds: it carries a routing-relevant key, it
// carries one of a short list of exact key/value pairs, or it carries
// none of a "clearly not routing data" key set.
//
// The third predicate is an OR arm, not an AND gate with the other two:
// an element with no tags at all satisfies it vacuously and is kept.
// This mirrors the upstream behavior being preserved here rather than
// the stricter "good key AND NOT bad key" reading its own comments
// suggest — a stricter filter would silently drop the untagged ways this
// one keeps today.
type RoutingFilter struct {
	pipeline.NoFlush
}

func (RoutingFilter) Name() string { return "routing_filter" }

func routingKeep(tags osm.Tags) bool {
	goodKey, notBad := false, true
	for _, t := range tags {
		if routingGoodKeys[t.Key] {
			goodKey = true
		}
		if v, ok := routingGoodKV[t.Key]; ok && v == t.Value {
			return true
		}
		if routingBadKeys[t.Key] {
			notBad = false
		}
	}
	return goodKey || notBad
}

func (RoutingFilter) Handle(data *pipeline.HandlerData) error {
	kept := data.Ways[:0]
	for _, w := range data.Ways {
		if routingKeep(w.Tags) {
			kept = append(kept, w)
		}
	}
	data.Ways = kept

	keptRel := data.Relations[:0]
	for _, r := range data.Relations {
		if routingKeep(r.Tags) {
			keptRel = append(keptRel, r)
		}
	}
	data.Relations = keptRel
	return nil
}
