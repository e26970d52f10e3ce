package regions

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/geo"
)

// Attribute names in the census state files.
const (
	codeField = "STUSPS"
	nameField = "NAME"
)

// ParseShapefile reads region boundaries from a polygon shapefile. Each
// record becomes a MultiPolygon in EWKB (SRID 4326). Records with a blank
// code or no usable geometry are skipped.
func ParseShapefile(shpPath string) ([]geo.RegionShape, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "regions: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader.Fields(), codeField)
	nameIdx := fieldIndex(reader.Fields(), nameField)
	if codeIdx < 0 || nameIdx < 0 {
		return nil, eris.Errorf("regions: shapefile %s lacks %s/%s fields", shpPath, codeField, nameField)
	}

	var (
		out     []geo.RegionShape
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		code := cleanAttr(reader.Attribute(codeIdx))
		if code == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		data, err := ewkb.Marshal(mp, ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "regions: encode boundary for %s", code)
		}

		out = append(out, geo.RegionShape{
			Code: code,
			Name: cleanAttr(reader.Attribute(nameIdx)),
			EWKB: data,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "regions: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("regions: skipped shapefile records", zap.Int("skipped", skipped))
	}
	return out, nil
}

func fieldIndex(fields []shp.Field, name string) int {
	for i, f := range fields {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func cleanAttr(v string) string {
	return strings.TrimSpace(strings.TrimRight(v, "\x00"))
}

// polygonToMultiPolygon groups shapefile rings into polygons. Clockwise rings
// are shells and start a new polygon; counter-clockwise rings are holes of the
// preceding shell. A hole with no preceding shell is promoted to a shell.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys [][][]geom.Coord
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}

		if signedArea(ring) < 0 || len(polys) == 0 {
			polys = append(polys, [][]geom.Coord{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}
	if len(polys) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(geo.SRID)
	for _, rings := range polys {
		poly, err := geom.NewPolygon(geom.XY).SetCoords(rings)
		if err != nil {
			zap.L().Debug("regions: skipping malformed polygon", zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("regions: skipping polygon part", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace area; negative for clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum / 2
}
