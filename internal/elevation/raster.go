// Package elevation implements raster-based elevation sampling: a
// RasterSource abstraction backed by single-band GeoTIFF files, a
// manager dispatching node coordinates to the right raster, a
// buffering enricher that batches samples, and an optional way
// splitter that inserts intermediate nodes along long way segments
// before they reach the enricher.
package elevation

import "github.com/paulmach/orb"

// RasterSource is the enricher's only contract with raster decoding: a
// bounding box, a nominal pixel resolution, and point sampling. How a
// concrete source gets its pixels from disk is not this contract's
// concern.
type RasterSource interface {
	Bounds() orb.Bound
	Resolution() (lonRes, latRes float64)
	Sample(lat, lon float64) (elevMeters float64, ok bool)
	Close() error
}
