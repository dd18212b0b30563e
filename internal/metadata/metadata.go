// Package metadata implements the handler that strips OSM history
// metadata (version, timestamp, changeset, uid, user) from elements,
// leaving id, coordinates, visibility, tags, refs, and members intact.
package metadata

import (
	"time"

	"github.com/paulmach/osm"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// Remover zeroes every element's version, timestamp, changeset, and
// author fields. It never drops an element or touches its tags.
type Remover struct {
	pipeline.NoFlush
}

func (Remover) Name() string { return "metadata_remover" }

func scrub(info *osm.Info) {
	info.Version = 0
	info.Timestamp = time.Time{}
	info.Changeset = 0
	info.Uid = 0
	info.User = ""
}

func (Remover) Handle(data *pipeline.HandlerData) error {
	for _, n := range data.Nodes {
		scrub(&n.Info)
	}
	for _, w := range data.Ways {
		scrub(&w.Info)
	}
	for _, r := range data.Relations {
		scrub(&r.Info)
	}
	return nil
}
