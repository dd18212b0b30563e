// Package trace implements the tracing printers activated by
// --print-node-id/--print-way-id/--print-relation-id: transparent
// handlers that log a matching element's state at a named chain
// position without altering it.
package trace

import (
	"go.uber.org/zap"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

// IDs is the set of element ids (per kind) a Printer watches for.
type IDs struct {
	Nodes     map[int64]bool
	Ways      map[int64]bool
	Relations map[int64]bool
}

// Empty reports whether no ids were requested, letting callers skip
// installing a Printer entirely.
func (ids IDs) Empty() bool {
	return len(ids.Nodes) == 0 && len(ids.Ways) == 0 && len(ids.Relations) == 0
}

// Printer logs any element matching its configured ids, tagged with
// Position so log output reads as a trace across the chain (e.g.
// "input" → "before_enricher" → "after_enricher" → "output").
type Printer struct {
	pipeline.NoFlush
	Position string
	IDs      IDs
	Logger   *zap.Logger
}

func NewPrinter(position string, ids IDs, logger *zap.Logger) *Printer {
	return &Printer{Position: position, IDs: ids, Logger: logger}
}

func (p *Printer) Name() string { return "trace_printer:" + p.Position }

func (p *Printer) Handle(data *pipeline.HandlerData) error {
	if p.Logger == nil {
		return nil
	}
	for _, n := range data.Nodes {
		if p.IDs.Nodes[int64(n.ID)] {
			p.Logger.Info("trace node",
				zap.String("position", p.Position),
				zap.Int64("id", int64(n.ID)),
				zap.Float64("lat", n.Lat),
				zap.Float64("lon", n.Lon),
				zap.Any("tags", n.Tags),
			)
		}
	}
	for _, w := range data.Ways {
		if p.IDs.Ways[int64(w.ID)] {
			p.Logger.Info("trace way",
				zap.String("position", p.Position),
				zap.Int64("id", int64(w.ID)),
				zap.Int("refs", len(w.Nodes)),
				zap.Any("tags", w.Tags),
			)
		}
	}
	for _, r := range data.Relations {
		if p.IDs.Relations[int64(r.ID)] {
			p.Logger.Info("trace relation",
				zap.String("position", p.Position),
				zap.Int64("id", int64(r.ID)),
				zap.Int("members", len(r.Members)),
				zap.Any("tags", r.Tags),
			)
		}
	}
	return nil
}
