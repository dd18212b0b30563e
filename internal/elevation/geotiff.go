package elevation

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/paulmach/orb"
)

const (
	tagModelPixelScale = 33550
	tagModelTiepoint    = 33922

	tiffTypeDouble = 12
)

// geoTag is one parsed IFD entry: tag number and the raw field values
// decoded to float64 (the only type these two georeferencing tags ever
// carry).
type geoTag struct {
	tag    uint16
	values []float64
}

// GeoTIFF is a RasterSource backed by a single-band GeoTIFF file. Pixel
// data is decoded once, eagerly, via golang.org/x/image/tiff; the
// georeferencing tags that place those pixels on the globe are read
// directly off the file's IFD, since the standard decoder does not
// surface them.
type GeoTIFF struct {
	path   string
	img    image.Image
	originLon, originLat float64
	scaleLon, scaleLat   float64
	bound  orb.Bound
}

// OpenGeoTIFF decodes path's pixel grid and georeferencing tags and
// returns a ready-to-query RasterSource.
func OpenGeoTIFF(path string) (*GeoTIFF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raster %s: %w", path, err)
	}
	defer f.Close()

	tags, err := readGeoTags(f)
	if err != nil {
		return nil, fmt.Errorf("reading georeferencing tags from %s: %w", path, err)
	}
	scale, ok := tags[tagModelPixelScale]
	if !ok || len(scale) < 2 {
		return nil, fmt.Errorf("raster %s: missing ModelPixelScaleTag", path)
	}
	tie, ok := tags[tagModelTiepoint]
	if !ok || len(tie) < 6 {
		return nil, fmt.Errorf("raster %s: missing ModelTiepointTag", path)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding raster %s: %w", path, err)
	}

	// Tiepoint (I,J,K -> X,Y,Z): with I=J=0 (the common case for a
	// single-tiepoint whole-raster placement), X/Y is directly the
	// geographic coordinate of pixel (0,0)'s upper-left corner.
	i, j := tie[0], tie[1]
	x, y := tie[3], tie[4]
	scaleLon, scaleLat := scale[0], scale[1]
	originLon := x - i*scaleLon
	originLat := y + j*scaleLat

	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())
	bound := orb.Bound{
		Min: orb.Point{originLon, originLat - height*scaleLat},
		Max: orb.Point{originLon + width*scaleLon, originLat},
	}

	return &GeoTIFF{
		path:      path,
		img:       img,
		originLon: originLon,
		originLat: originLat,
		scaleLon:  scaleLon,
		scaleLat:  scaleLat,
		bound:     bound,
	}, nil
}

func (g *GeoTIFF) Bounds() orb.Bound { return g.bound }

func (g *GeoTIFF) Resolution() (lonRes, latRes float64) { return g.scaleLon, g.scaleLat }

func (g *GeoTIFF) Close() error { return nil }

// Sample returns the pixel value nearest (lat, lon), treated as meters
// of elevation. ok is false when the coordinate falls outside the
// raster's pixel grid.
func (g *GeoTIFF) Sample(lat, lon float64) (float64, bool) {
	col := int(math.Round((lon - g.originLon) / g.scaleLon))
	row := int(math.Round((g.originLat - lat) / g.scaleLat))

	b := g.img.Bounds()
	if col < b.Min.X || col >= b.Max.X || row < b.Min.Y || row >= b.Max.Y {
		return 0, false
	}

	switch px := g.img.(type) {
	case *image.Gray16:
		return float64(px.Gray16At(col, row).Y), true
	case *image.Gray:
		return float64(px.GrayAt(col, row).Y), true
	default:
		r, _, _, _ := g.img.At(col, row).RGBA()
		return float64(r >> 8), true
	}
}

// readGeoTags walks the file's first IFD looking for the two
// georeferencing tags this package needs, ignoring everything else.
// Hand-rolled in the same manually-parse-the-binary-header style used
// elsewhere in this codebase for wire formats with no Go decoder.
func readGeoTags(r io.ReadSeeker) (map[uint16][]float64, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file (bad byte-order marker)")
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("not a TIFF file (bad magic number)")
	}
	ifdOffset := order.Uint32(header[4:8])

	if _, err := r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return nil, err
	}
	var count [2]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, err
	}
	n := order.Uint16(count[:])

	result := make(map[uint16][]float64)
	entry := make([]byte, 12)
	for i := uint16(0); i < n; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, err
		}
		tag := order.Uint16(entry[0:2])
		typ := order.Uint16(entry[2:4])
		cnt := order.Uint32(entry[4:8])

		if (tag != tagModelPixelScale && tag != tagModelTiepoint) || typ != tiffTypeDouble {
			continue
		}

		valueOffset := order.Uint32(entry[8:12])
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		if _, err := r.Seek(int64(valueOffset), io.SeekStart); err != nil {
			return nil, err
		}
		values := make([]float64, cnt)
		buf := make([]byte, 8)
		for v := uint32(0); v < cnt; v++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			bits := order.Uint64(buf)
			values[v] = math.Float64frombits(bits)
		}
		result[tag] = values
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return result, nil
}
