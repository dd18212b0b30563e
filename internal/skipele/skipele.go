// Package skipele implements the pass-1 handler that marks which nodes
// must not receive an elevation sample because they belong to a
// bridge/tunnel/cutting/indoor way.
package skipele

import (
	"go.uber.org/zap"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// DefaultKeys is the tag key set that triggers elevation skipping for a
// way's node refs, unless the tag's value is "no".
var DefaultKeys = []string{"bridge", "tunnel", "cutting", "indoor"}

// Collector sets data.SkipEle for every node referenced by a way whose
// tags include one of Keys with a value other than "no".
type Collector struct {
	pipeline.NoFlush
	Keys   map[string]bool
	Logger *zap.Logger
}

// NewCollector builds a Collector over DefaultKeys.
func NewCollector(logger *zap.Logger) *Collector {
	keys := make(map[string]bool, len(DefaultKeys))
	for _, k := range DefaultKeys {
		keys[k] = true
	}
	return &Collector{Keys: keys, Logger: logger}
}

func (*Collector) Name() string { return "skip_elevation_node_collector" }

func (c *Collector) skip(tags osm.Tags) bool {
	for _, t := range tags {
		if c.Keys[t.Key] && t.Value != "no" {
			return true
		}
	}
	return false
}

func (c *Collector) Handle(data *pipeline.HandlerData) error {
	for _, w := range data.Ways {
		if !c.skip(w.Tags) {
			continue
		}
		for _, id := range w.Nodes.NodeIDs() {
			data.SkipEle.Set(uint64(id), true)
		}
	}
	return nil
}
