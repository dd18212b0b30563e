package country

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/paulmach/orb/encoding/wkt"
)

// SaveCache writes the loaded mapping to four sibling CSV files
// (<baseName>_id.csv, _name.csv, _index.csv, _area.csv) so a
// subsequent run could in principle skip the grid sweep. Mirrors
// area.rs's save_area_records.
func (m *Mapping) SaveCache(baseName string) error {
	if err := writeKV(baseName+"_id.csv", m.id); err != nil {
		return err
	}
	if err := writeKV(baseName+"_name.csv", m.name); err != nil {
		return err
	}
	if err := writeIndex(baseName+"_index.csv", m.index[:]); err != nil {
		return err
	}
	return writeArea(baseName+"_area.csv", m.area)
}

func writeKV(path string, kv map[uint16]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Comma = ';'
	codes := make([]uint16, 0, len(kv))
	for code := range kv {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		if err := w.Write([]string{strconv.Itoa(int(code)), kv[code]}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeIndex(path string, index []uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Comma = ';'
	for i, v := range index {
		if v == 0 {
			continue
		}
		if err := w.Write([]string{strconv.Itoa(i), strconv.Itoa(int(v))}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeArea(path string, area map[uint16][]clipEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Comma = ';'
	for cell, entries := range area {
		for _, e := range entries {
			geoWKT := wkt.MarshalString(e.geo)
			if err := w.Write([]string{strconv.Itoa(int(cell)), strconv.Itoa(int(e.code)), geoWKT}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// LoadCache reports whether a prebuilt grid cache exists for baseName.
// It always returns false: area.rs's own load_area_records is a stub
// ("fn load_area_records(name: &str) -> bool { false }") that the
// original project never implemented, so every run recomputes the grid
// sweep from the source CSV. Preserved here rather than built out,
// since nothing else in this codebase depends on the cache round-trip.
func LoadCache(baseName string) (*Mapping, bool) {
	return nil, false
}
