package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID is the spatial reference of every stored geometry (WGS 84).
const SRID = 4326

// PointEWKB encodes a lat/lon as a little-endian EWKB point with SRID 4326.
func PointEWKB(lat, lon float64) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}

// BoundaryEWKB encodes a 2D polygon or multipolygon as a MultiPolygon EWKB
// with SRID 4326.
func BoundaryEWKB(g geom.T) ([]byte, error) {
	var mp *geom.MultiPolygon
	switch t := g.(type) {
	case *geom.MultiPolygon:
		mp = t
	case *geom.Polygon:
		mp = geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "geo: wrap polygon")
		}
	default:
		return nil, eris.Errorf("geo: boundary must be a Polygon or MultiPolygon, got %T", g)
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.New("geo: boundary is empty")
	}
	if mp.Layout() != geom.XY {
		return nil, eris.Errorf("geo: boundary layout must be 2D, got %v", mp.Layout())
	}

	data, err := ewkb.Marshal(mp.SetSRID(SRID), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode boundary")
	}
	return data, nil
}
