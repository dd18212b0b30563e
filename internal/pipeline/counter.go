package pipeline

import "github.com/route-beacon/osm-transform/internal/metrics"

// ElementCounter is a transparent Handler that tallies the elements
// passing through its position in a chain, both into a Counters field
// (for end-of-run summary logging) and into the elements_total metric.
// Placing one before and one after the filtering handlers in a pass
// yields the input/accepted counts; placing one in the output chain
// yields the output counts.
type ElementCounter struct {
	NoFlush
	pass  string
	stage string
	add   func(c *Counters, nodes, ways, relations int64)
}

// NewInputCounter builds an ElementCounter that updates the Input*
// fields of a pass's Counters.
func NewInputCounter(pass string) *ElementCounter {
	return &ElementCounter{pass: pass, stage: "input", add: func(c *Counters, n, w, r int64) {
		c.InputNodes += n
		c.InputWays += w
		c.InputRelations += r
	}}
}

// NewAcceptedCounter builds an ElementCounter that updates the
// Accepted* fields of a pass's Counters.
func NewAcceptedCounter(pass string) *ElementCounter {
	return &ElementCounter{pass: pass, stage: "accepted", add: func(c *Counters, n, w, r int64) {
		c.AcceptedNodes += n
		c.AcceptedWays += w
		c.AcceptedRelations += r
	}}
}

// NewOutputCounter builds an ElementCounter that updates the Output*
// fields of a pass's Counters.
func NewOutputCounter(pass string) *ElementCounter {
	return &ElementCounter{pass: pass, stage: "output", add: func(c *Counters, n, w, r int64) {
		c.OutputNodes += n
		c.OutputWays += w
		c.OutputRelations += r
	}}
}

func (c *ElementCounter) Name() string { return "counter:" + c.stage }

func (c *ElementCounter) Handle(data *HandlerData) error {
	n, w, r := int64(len(data.Nodes)), int64(len(data.Ways)), int64(len(data.Relations))
	c.add(data.Counters, n, w, r)

	metrics.ElementsTotal.WithLabelValues(c.pass, c.stage, "node").Add(float64(n))
	metrics.ElementsTotal.WithLabelValues(c.pass, c.stage, "way").Add(float64(w))
	metrics.ElementsTotal.WithLabelValues(c.pass, c.stage, "relation").Add(float64(r))
	return nil
}
