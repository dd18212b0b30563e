package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/osm-transform/internal/metrics"
)

// Handler is the single capability every pipeline stage implements. Handle
// is invoked once per dispatched batch, in chain order; Flush is invoked
// once after the input stream ends, also in chain order, so buffering
// handlers (the elevation enricher, the output stage) can release any
// residue.
type Handler interface {
	Name() string
	Handle(data *HandlerData) error
	Flush(data *HandlerData) error
}

// NoFlush is embedded by handlers with nothing to do on Flush.
type NoFlush struct{}

func (NoFlush) Flush(*HandlerData) error { return nil }

// Chain is an ordered, immutable list of handlers run over successive
// batches of the same HandlerData.
type Chain struct {
	name     string
	handlers []Handler
	logger   *zap.Logger
}

// NewChain builds a named chain (e.g. "discovery", "transformation") from
// an ordered handler list.
func NewChain(name string, logger *zap.Logger, handlers ...Handler) *Chain {
	return &Chain{name: name, handlers: handlers, logger: logger}
}

// Dispatch runs data through every handler's Handle in order, stopping and
// returning the first error encountered (wrapped with the handler name).
func (c *Chain) Dispatch(data *HandlerData) error {
	for _, h := range c.handlers {
		start := time.Now()
		err := h.Handle(data)
		metrics.HandlerDuration.WithLabelValues(c.name, h.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("%s/%s: %w", c.name, h.Name(), err)
		}
	}
	return nil
}

// FlushAll runs data through every handler's Flush in order. A handler's
// Flush may append more elements to data; when it does, the remainder of
// the chain runs its Handle over data before the next handler's Flush,
// so whatever a buffering handler released is still processed (and
// written) by every handler after it.
func (c *Chain) FlushAll(data *HandlerData) error {
	for i, h := range c.handlers {
		before := len(data.Nodes) + len(data.Ways) + len(data.Relations)
		if err := h.Flush(data); err != nil {
			return fmt.Errorf("%s/%s: flush: %w", c.name, h.Name(), err)
		}
		if len(data.Nodes)+len(data.Ways)+len(data.Relations) > before {
			for _, next := range c.handlers[i+1:] {
				if err := next.Handle(data); err != nil {
					return fmt.Errorf("%s/%s: %w", c.name, next.Name(), err)
				}
			}
		}
		if c.logger != nil {
			c.logger.Debug("handler flushed",
				zap.String("chain", c.name),
				zap.String("handler", h.Name()),
			)
		}
	}
	return nil
}
