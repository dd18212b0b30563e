package trace

import (
	"testing"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

func TestPrinterLogsOnlyMatchingIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	p := NewPrinter("input", IDs{Nodes: map[int64]bool{1: true}}, logger)

	data := &pipeline.HandlerData{
		Nodes: []*osm.Node{{ID: 1}, {ID: 2}},
	}
	if err := p.Handle(data); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["id"] != int64(1) {
		t.Fatalf("expected logged id 1, got %+v", entries[0].ContextMap())
	}
}

func TestPrinterNilLoggerIsNoop(t *testing.T) {
	p := NewPrinter("input", IDs{Nodes: map[int64]bool{1: true}}, nil)
	data := &pipeline.HandlerData{Nodes: []*osm.Node{{ID: 1}}}
	if err := p.Handle(data); err != nil {
		t.Fatalf("expected no error with nil logger, got %v", err)
	}
}

func TestIDsEmpty(t *testing.T) {
	if !(IDs{}).Empty() {
		t.Fatalf("expected zero-value IDs to be empty")
	}
	if (IDs{Ways: map[int64]bool{5: true}}).Empty() {
		t.Fatalf("expected IDs with a way entry to be non-empty")
	}
}
