package elevation

import "github.com/paulmach/orb"

// Manager holds every registered raster and resolves a coordinate to
// the raster that should sample it: the first (by registration order)
// whose bounding box contains the point.
type Manager struct {
	rasters []RasterSource
}

// NewManager builds a Manager over an ordered raster list. Order
// matters: it is also the tie-break rule when boxes overlap.
func NewManager(rasters ...RasterSource) *Manager {
	return &Manager{rasters: rasters}
}

// For returns the raster covering (lat, lon), or nil if none does.
func (m *Manager) For(lat, lon float64) RasterSource {
	pt := orb.Point{lon, lat}
	for _, r := range m.rasters {
		if r.Bounds().Contains(pt) {
			return r
		}
	}
	return nil
}

// Close releases every registered raster, returning the first error
// encountered (if any) after attempting to close them all.
func (m *Manager) Close() error {
	var firstErr error
	for _, r := range m.rasters {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
