package filter

import (
	"regexp"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// TagMode selects whether TagFilterByKey keeps or discards matching tags.
type TagMode int

const (
	// AcceptMatching keeps only tags whose key matches the regex.
	AcceptMatching TagMode = iota
	// RemoveMatching drops tags whose key matches the regex.
	RemoveMatching
)

// Kinds is a per-element-kind enable mask shared by the generic filters.
type Kinds struct {
	Nodes     bool
	Ways      bool
	Relations bool
}

// AllKinds enables a filter for nodes, ways, and relations alike.
var AllKinds = Kinds{Nodes: true, Ways: true, Relations: true}

// TagFilterByKey rewrites an element's tag set in place according to
// Mode; it never drops the element itself. Used post-enrichment to
// scrub known noise keys such as source/note/url/created_by/fixme/
// wikipedia variants.
type TagFilterByKey struct {
	pipeline.NoFlush
	Key   *regexp.Regexp
	Mode  TagMode
	Kinds Kinds
}

func (TagFilterByKey) Name() string { return "tag_filter_by_key" }

func (f TagFilterByKey) apply(tags osm.Tags) osm.Tags {
	kept := tags[:0]
	for _, t := range tags {
		matches := f.Key.MatchString(t.Key)
		if (f.Mode == AcceptMatching) == matches {
			kept = append(kept, t)
		}
	}
	return kept
}

func (f TagFilterByKey) Handle(data *pipeline.HandlerData) error {
	if f.Kinds.Nodes {
		for _, n := range data.Nodes {
			n.Tags = f.apply(n.Tags)
		}
	}
	if f.Kinds.Ways {
		for _, w := range data.Ways {
			w.Tags = f.apply(w.Tags)
		}
	}
	if f.Kinds.Relations {
		for _, r := range data.Relations {
			r.Tags = f.apply(r.Tags)
		}
	}
	return nil
}

// TagKeyFilter drops whole elements of the enabled kinds whose tag set
// contains any key from Keys. Elements without a matching key pass
// through unchanged.
type TagKeyFilter struct {
	pipeline.NoFlush
	Keys  map[string]bool
	Kinds Kinds
}

func (TagKeyFilter) Name() string { return "tag_key_filter" }

func (f TagKeyFilter) hasKey(tags osm.Tags) bool {
	for _, t := range tags {
		if f.Keys[t.Key] {
			return true
		}
	}
	return false
}

func (f TagKeyFilter) Handle(data *pipeline.HandlerData) error {
	if f.Kinds.Nodes {
		kept := data.Nodes[:0]
		for _, n := range data.Nodes {
			if !f.hasKey(n.Tags) {
				kept = append(kept, n)
			}
		}
		data.Nodes = kept
	}
	if f.Kinds.Ways {
		kept := data.Ways[:0]
		for _, w := range data.Ways {
			if !f.hasKey(w.Tags) {
				kept = append(kept, w)
			}
		}
		data.Ways = kept
	}
	if f.Kinds.Relations {
		kept := data.Relations[:0]
		for _, r := range data.Relations {
			if !f.hasKey(r.Tags) {
				kept = append(kept, r)
			}
		}
		data.Relations = kept
	}
	return nil
}

// DropAllFilter unconditionally drops elements of the enabled kinds.
// Used in the discovery pass to discard nodes once the node_ids set has
// been populated, while still letting them update counters upstream of
// this filter in the chain.
type DropAllFilter struct {
	pipeline.NoFlush
	Kinds Kinds
}

func (DropAllFilter) Name() string { return "drop_all_filter" }

func (f DropAllFilter) Handle(data *pipeline.HandlerData) error {
	if f.Kinds.Nodes {
		data.Nodes = data.Nodes[:0]
	}
	if f.Kinds.Ways {
		data.Ways = data.Ways[:0]
	}
	if f.Kinds.Relations {
		data.Relations = data.Relations[:0]
	}
	return nil
}

// NodeIDFilter drops nodes whose id was not recorded in HandlerData's
// referenced-node set. Ways and relations pass through unchanged.
type NodeIDFilter struct {
	pipeline.NoFlush
}

func (NodeIDFilter) Name() string { return "node_id_filter" }

func (NodeIDFilter) Handle(data *pipeline.HandlerData) error {
	kept := data.Nodes[:0]
	for _, n := range data.Nodes {
		if data.NodeIDs.Get(uint64(n.ID)) {
			kept = append(kept, n)
		}
	}
	data.Nodes = kept
	return nil
}
