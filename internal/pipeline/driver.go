package pipeline

import (
	"errors"
	"io"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// ElementReader is the pipeline's only contract with the PBF decoding
// layer: a stream of typed elements in OSM's mandated node/way/relation
// order. Next returns io.EOF once the stream is exhausted. Decoding
// itself — and the PBF wire layout — are not this package's concern.
type ElementReader interface {
	Next() (any, error)
	Close() error
}

// Driver reads elements from an ElementReader and dispatches them through
// a Chain in batches. Elements are accumulated, in arrival order, until
// BatchSize have been collected or the stream ends — whichever comes
// first — matching the "handler-defined boundary, default: exhaust the
// stream" driving discipline. A BatchSize of 0 means exhaust the stream
// in a single batch.
type Driver struct {
	Chain     *Chain
	BatchSize int
	Logger    *zap.Logger
}

// Run drives reader through d.Chain, reusing and mutating data across
// every batch, and calls Flush once the stream ends.
func (d *Driver) Run(reader ElementReader, data *HandlerData) error {
	data.ResetBatch()
	count := 0

	for {
		elem, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch e := elem.(type) {
		case *osm.Node:
			data.Nodes = append(data.Nodes, e)
		case *osm.Way:
			data.Ways = append(data.Ways, e)
		case *osm.Relation:
			data.Relations = append(data.Relations, e)
		}
		count++

		if d.BatchSize > 0 && count >= d.BatchSize {
			if err := d.Chain.Dispatch(data); err != nil {
				return err
			}
			data.ResetBatch()
			count = 0
		}
	}

	if !data.Empty() || count == 0 {
		if err := d.Chain.Dispatch(data); err != nil {
			return err
		}
		data.ResetBatch()
	}

	return d.Chain.FlushAll(data)
}
