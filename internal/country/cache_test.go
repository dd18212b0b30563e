package country

import (
	"os"
	"strings"
	"testing"
)

func TestLoadCacheAlwaysMisses(t *testing.T) {
	m, ok := LoadCache("/tmp/whatever-base-name")
	if ok {
		t.Fatalf("expected LoadCache to always report a miss")
	}
	if m != nil {
		t.Fatalf("expected a nil Mapping on a cache miss, got %+v", m)
	}
}

func TestSaveCacheWritesFourSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	base := dir + "/grid"

	m, err := load(strings.NewReader(testCSV), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SaveCache(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, suffix := range []string{"_id.csv", "_name.csv", "_index.csv", "_area.csv"} {
		if _, err := os.Stat(base + suffix); err != nil {
			t.Errorf("expected %s%s to exist: %v", base, suffix, err)
		}
	}
}
