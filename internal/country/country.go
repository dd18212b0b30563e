// Package country implements the coarse-grid point-in-polygon country
// tagger: a CSV of country polygons is swept once into a 360×180 cell
// index at load time, so that per-node lookups during the main pass are
// O(1) amortized instead of a polygon test against every country.
package country

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/route-beacon/osm-transform/internal/pipeline"
)

const (
	gridLonCells = 360
	gridLatCells = 180
	gridSize     = gridLonCells * gridLatCells

	// multiCode marks a cell covered by more than one country, or by one
	// country only partially. Grid cells untouched by any country keep
	// the zero value.
	multiCode uint16 = 0xFFFF
)

// clipEntry is one (country code, clipped polygon) pair registered
// against a cell whose index is multiCode.
type clipEntry struct {
	code uint16
	geo  orb.MultiPolygon
}

// Mapping is the loaded country index: a flat grid plus the per-cell
// overflow for cells split across more than one country.
type Mapping struct {
	index [gridSize]uint16
	area  map[uint16][]clipEntry
	id    map[uint16]string
	name  map[uint16]string
}

func cellIndex(lat, lon int) int {
	return (lat+90)*gridLonCells + (lon + 180)
}

func cellBound(lat, lon int) orb.Bound {
	fLat, fLon := float64(lat), float64(lon)
	return orb.Bound{
		Min: orb.Point{fLon, fLat},
		Max: orb.Point{fLon + 1, fLat + 1},
	}
}

func boundPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, true
	case orb.MultiPolygon:
		return v, true
	default:
		return nil, false
	}
}

// clipAreaRatio clips mp to bound and reports the clipped multipolygon
// along with the fraction of bound's area it covers. A ratio at or
// above fullContainmentEpsilon is treated as full containment of the
// cell; this is a planar area comparison rather than a true polygon
// containment test, an acceptable approximation at the 1°×1° cell
// scale this grid operates at.
const fullContainmentEpsilon = 0.999

func clipAreaRatio(bound orb.Bound, mp orb.MultiPolygon) (orb.MultiPolygon, float64) {
	clipped := clip.MultiPolygon(bound, mp)
	if len(clipped) == 0 {
		return nil, 0
	}
	cellArea := planar.Area(boundPolygon(bound))
	if cellArea == 0 {
		return clipped, 0
	}
	clippedArea := 0.0
	for _, p := range clipped {
		clippedArea += planar.Area(p)
	}
	ratio := clippedArea / cellArea
	if ratio < 0 {
		ratio = -ratio
	}
	return clipped, ratio
}

// addArea sweeps the full grid for one country's geometry, registering
// full or partial cell coverage. Grounded on area.rs's add_area: a full
// grid scan at load time keeps the per-node lookup path branch-free.
func (m *Mapping) addArea(code uint16, geo orb.MultiPolygon) {
	bound := geo.Bound()
	minLat, maxLat := int(math.Floor(bound.Min[1])), int(math.Floor(bound.Max[1]))
	minLon, maxLon := int(math.Floor(bound.Min[0])), int(math.Floor(bound.Max[0]))
	if minLat < -90 {
		minLat = -90
	}
	if maxLat > 89 {
		maxLat = 89
	}
	if minLon < -180 {
		minLon = -180
	}
	if maxLon > 179 {
		maxLon = 179
	}

	for lat := minLat; lat <= maxLat; lat++ {
		for lon := minLon; lon <= maxLon; lon++ {
			cb := cellBound(lat, lon)
			clipped, ratio := clipAreaRatio(cb, geo)
			if len(clipped) == 0 {
				continue
			}
			idx := cellIndex(lat, lon)
			if ratio >= fullContainmentEpsilon {
				m.index[idx] = code
			} else {
				m.index[idx] = multiCode
				m.area[uint16(idx)] = append(m.area[uint16(idx)], clipEntry{code: code, geo: clipped})
			}
		}
	}
}

// Load parses a CSV with columns id;name;geo (geo a WKT Polygon or
// MultiPolygon) and builds a Mapping. Rows with unsupported geometry
// are skipped with a warning. The header row is required and skipped.
func Load(path string, logger *zap.Logger) (*Mapping, error) {
	baseName := strings.TrimSuffix(path, filepath.Ext(path))
	if m, ok := LoadCache(baseName); ok {
		return m, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening country mapping %s: %w", path, err)
	}
	defer f.Close()

	m, err := load(f, logger)
	if err != nil {
		return nil, err
	}
	if err := m.SaveCache(baseName); err != nil && logger != nil {
		logger.Warn("failed to persist country grid cache", zap.Error(err))
	}
	return m, nil
}

func load(r io.Reader, logger *zap.Logger) (*Mapping, error) {
	m := &Mapping{
		area: make(map[uint16][]clipEntry),
		id:   make(map[uint16]string),
		name: make(map[uint16]string),
	}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil { // header
		if err == io.EOF {
			return m, nil
		}
		return nil, fmt.Errorf("reading country mapping header: %w", err)
	}

	var code uint16 = 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading country mapping row: %w", err)
		}
		if len(row) < 3 {
			continue
		}
		id, name, geoWKT := row[0], row[1], row[2]

		geom, err := wkt.Unmarshal(geoWKT)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping country row with unparseable geometry",
					zap.String("id", id), zap.String("name", name), zap.Error(err))
			}
			code++
			continue
		}
		mp, ok := asMultiPolygon(geom)
		if !ok {
			if logger != nil {
				logger.Warn("skipping country row with unsupported geometry",
					zap.String("id", id), zap.String("name", name))
			}
			code++
			continue
		}

		m.id[code] = id
		m.name[code] = name
		m.addArea(code, mp)
		code++
	}

	return m, nil
}

// Lookup returns the ISO ids of every country covering (lat, lon), in
// deterministic ascending-code order. Points at or beyond a pole
// (|lat| >= 90) are reported with ok=false: tagging a pole is
// undefined and the caller must leave the node untagged rather than
// append an empty country tag.
func (m *Mapping) Lookup(lat, lon float64) (ids []string, ok bool) {
	if lat >= 90 || lat <= -90 {
		return nil, false
	}
	idx := cellIndex(int(math.Floor(lat)), int(math.Floor(lon)))
	switch code := m.index[idx]; code {
	case 0:
		return nil, true
	case multiCode:
		pt := orb.Point{lon, lat}
		var codes []uint16
		for _, e := range m.area[uint16(idx)] {
			if containsPoint(e.geo, pt) {
				codes = append(codes, e.code)
			}
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, c := range codes {
			ids = append(ids, m.id[c])
		}
		return ids, true
	default:
		return []string{m.id[code]}, true
	}
}

func containsPoint(mp orb.MultiPolygon, pt orb.Point) bool {
	for _, p := range mp {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}

// Handler tags every node with a country key listing the ISO ids of the
// countries covering its coordinate, joined by commas. The tag is
// appended even when the list is empty, except at or beyond a pole,
// where the node is left untagged entirely.
type Handler struct {
	pipeline.NoFlush
	Mapping *Mapping
}

func (*Handler) Name() string { return "area_handler" }

func (h *Handler) Handle(data *pipeline.HandlerData) error {
	for _, n := range data.Nodes {
		ids, ok := h.Mapping.Lookup(n.Lat, n.Lon)
		if !ok {
			continue
		}
		n.Tags = append(n.Tags, osm.Tag{Key: "country", Value: strings.Join(ids, ",")})
	}
	return nil
}
