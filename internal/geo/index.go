package geo

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
)

type indexedRegion struct {
	code   string
	name   string
	bounds *geom.Bounds
	polys  []*geom.Polygon
}

// RegionIndex is an in-memory point-in-polygon index over region
// boundaries. It is read-only after construction and safe for concurrent use.
type RegionIndex struct {
	regions []indexedRegion
}

// NewRegionIndex decodes the shapes and builds an index. Regions are kept in
// code order so that the first match is deterministic when boundaries overlap.
func NewRegionIndex(shapes []RegionShape) (*RegionIndex, error) {
	idx := &RegionIndex{regions: make([]indexedRegion, 0, len(shapes))}
	for _, s := range shapes {
		g, err := ewkb.Unmarshal(s.EWKB)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: decode boundary for %s", s.Code)
		}

		var polys []*geom.Polygon
		switch t := g.(type) {
		case *geom.MultiPolygon:
			for i := 0; i < t.NumPolygons(); i++ {
				polys = append(polys, t.Polygon(i))
			}
		case *geom.Polygon:
			polys = append(polys, t)
		default:
			return nil, eris.Errorf("geo: boundary for %s is %T, want polygon", s.Code, g)
		}
		if len(polys) == 0 {
			continue
		}

		idx.regions = append(idx.regions, indexedRegion{
			code:   s.Code,
			name:   s.Name,
			bounds: g.Bounds(),
			polys:  polys,
		})
	}

	sort.SliceStable(idx.regions, func(i, j int) bool {
		return idx.regions[i].code < idx.regions[j].code
	})
	return idx, nil
}

// Len returns the number of indexed regions.
func (idx *RegionIndex) Len() int {
	return len(idx.regions)
}

// Lookup returns the code of the first region containing the point, or "".
func (idx *RegionIndex) Lookup(lat, lon float64) string {
	pt := geom.Coord{lon, lat}
	for i := range idx.regions {
		r := &idx.regions[i]
		if !r.bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		for _, p := range r.polys {
			if polygonContains(p, pt) {
				return r.code
			}
		}
	}
	return ""
}

// RegionFor implements RegionResolver.
func (idx *RegionIndex) RegionFor(_ context.Context, lat, lon float64) (string, error) {
	return idx.Lookup(lat, lon), nil
}

// polygonContains reports whether pt lies in the shell and outside every hole.
func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	shell := p.LinearRing(0)
	if !xy.IsPointInRing(shell.Layout(), pt, shell.FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		hole := p.LinearRing(i)
		if xy.IsPointInRing(hole.Layout(), pt, hole.FlatCoords()) {
			return false
		}
	}
	return true
}
