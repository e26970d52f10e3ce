package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestPointEWKB(t *testing.T) {
	data, err := PointEWKB(40.5, -74.25)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, SRID, pt.SRID())
	assert.Equal(t, -74.25, pt.X())
	assert.Equal(t, 40.5, pt.Y())
}

func TestBoundaryEWKB(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
	})

	data, err := BoundaryEWKB(poly)
	require.NoError(t, err)
	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, SRID, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())

	multi := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, multi.Push(poly))
	_, err = BoundaryEWKB(multi)
	assert.NoError(t, err)

	_, err = BoundaryEWKB(geom.NewPoint(geom.XY))
	assert.Error(t, err)
	_, err = BoundaryEWKB(geom.NewMultiPolygon(geom.XY))
	assert.Error(t, err)
	_, err = BoundaryEWKB(geom.NewPolygon(geom.XYZ).MustSetCoords([][]geom.Coord{
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 0, 1}},
	}))
	assert.Error(t, err)
}
