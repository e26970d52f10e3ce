package geo

import "context"

// RegionResolver maps a coordinate to the code of the region containing it.
// An empty code with a nil error means no region contains the point.
type RegionResolver interface {
	RegionFor(ctx context.Context, lat, lon float64) (string, error)
}

// RegionShape is a region boundary as loaded from a shapefile or a store.
// EWKB holds a (Multi)Polygon in EPSG:4326, x = longitude, y = latitude.
type RegionShape struct {
	Code string
	Name string
	EWKB []byte
}

// ResolverFunc adapts a function to RegionResolver.
type ResolverFunc func(ctx context.Context, lat, lon float64) (string, error)

// RegionFor calls f.
func (f ResolverFunc) RegionFor(ctx context.Context, lat, lon float64) (string, error) {
	return f(ctx, lat, lon)
}
