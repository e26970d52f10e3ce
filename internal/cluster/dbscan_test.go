package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offset returns a point roughly dNorth meters north of p.
func offset(p Point, dNorth float64) Point {
	return Point{Lat: p.Lat + dNorth/111_195, Lon: p.Lon}
}

func TestDBSCAN_Empty(t *testing.T) {
	labels, n, err := DBSCAN(nil, Params{})
	require.NoError(t, err)
	assert.Nil(t, labels)
	assert.Zero(t, n)
}

func TestDBSCAN_TwoGroups(t *testing.T) {
	a := Point{Lat: 40.7128, Lon: -74.0060}
	b := offset(a, 500)
	points := []Point{a, offset(a, 50), offset(a, 100), b, offset(b, 40), offset(b, 80)}

	labels, n, err := DBSCAN(points, Params{EpsMeters: 300, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, labels)
}

func TestDBSCAN_Noise(t *testing.T) {
	a := Point{Lat: 40.7128, Lon: -74.0060}
	points := []Point{a, offset(a, 10), offset(a, 5000)}

	labels, n, err := DBSCAN(points, Params{EpsMeters: 300, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0, Noise}, labels)
}

func TestDBSCAN_SinglePointIsNoise(t *testing.T) {
	labels, n, err := DBSCAN([]Point{{Lat: 1, Lon: 1}}, Params{EpsMeters: 300, MinSamples: 2})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int{Noise}, labels)
}

func TestDBSCAN_ChainsThroughCorePoints(t *testing.T) {
	// Consecutive points are 250 m apart, so the ends (1 km apart) still
	// join one cluster through density reachability.
	a := Point{Lat: 35, Lon: -100}
	points := []Point{a, offset(a, 250), offset(a, 500), offset(a, 750), offset(a, 1000)}

	labels, n, err := DBSCAN(points, Params{EpsMeters: 300, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, l := range labels {
		assert.Equal(t, 0, l)
	}
}

func TestDBSCAN_DuplicatesFormCluster(t *testing.T) {
	p := Point{Lat: 10, Lon: 10}
	labels, n, err := DBSCAN([]Point{p, p}, Params{EpsMeters: 300, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0}, labels)
}

func TestDBSCAN_Defaults(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	labels, n, err := DBSCAN([]Point{a, offset(a, 200)}, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0}, labels)
}

func TestDBSCAN_EpsBoundary(t *testing.T) {
	a := Point{Lat: 40.7128, Lon: -74.0060}
	params := Params{EpsMeters: 300, MinSamples: 2}

	labels, n, err := DBSCAN([]Point{a, offset(a, 299)}, params)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0}, labels)

	labels, n, err = DBSCAN([]Point{a, offset(a, 301)}, params)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []int{Noise, Noise}, labels)
}
