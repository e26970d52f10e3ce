// Package cluster implements density-based spatial clustering of pings on
// the sphere.
package cluster

import (
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/spatial/vptree"

	"github.com/jonnison/tower-jumps/internal/geo"
)

// Noise is the label given to points that belong to no cluster.
const Noise = -1

// Default parameters, tuned for cell-tower triangulation error.
const (
	DefaultEpsMeters  = 300.0
	DefaultMinSamples = 2
)

// Params configures DBSCAN.
type Params struct {
	EpsMeters  float64 // neighborhood radius, great-circle meters
	MinSamples int     // neighbors (including the point itself) to be a core point
}

// Point is a location in degrees.
type Point struct {
	Lat, Lon float64
}

// node adapts a Point to vptree.Comparable using haversine distance, which
// is a metric on the sphere.
type node struct {
	Point
	idx int
}

func (n node) Distance(c vptree.Comparable) float64 {
	o := c.(node)
	return geo.Haversine(n.Lat, n.Lon, o.Lat, o.Lon)
}

// DBSCAN labels every point with a cluster id (0, 1, ...) or Noise. Cluster
// ids are assigned in order of the lowest-index core point, so the result is
// a pure function of the input order.
func DBSCAN(points []Point, params Params) (labels []int, clusters int, err error) {
	if len(points) == 0 {
		return nil, 0, nil
	}
	if params.EpsMeters <= 0 {
		params.EpsMeters = DefaultEpsMeters
	}
	if params.MinSamples <= 0 {
		params.MinSamples = DefaultMinSamples
	}

	items := make([]vptree.Comparable, len(points))
	for i, p := range points {
		items[i] = node{Point: p, idx: i}
	}
	// vptree.New reorders its input; items is a private copy.
	tree, err := vptree.New(items, 0, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "cluster: build vp-tree")
	}

	regionQuery := func(i int) []int {
		keep := vptree.NewDistKeeper(params.EpsMeters)
		tree.NearestSet(keep, node{Point: points[i], idx: i})
		out := make([]int, 0, keep.Len())
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			out = append(out, cd.Comparable.(node).idx)
		}
		sort.Ints(out)
		return out
	}

	// 0 = unvisited, -1 = noise, >0 = cluster id + 1.
	state := make([]int, len(points))
	next := 0
	for i := range points {
		if state[i] != 0 {
			continue
		}
		neighbors := regionQuery(i)
		if len(neighbors) < params.MinSamples {
			state[i] = Noise
			continue
		}
		next++
		expand(state, i, neighbors, next, params.MinSamples, regionQuery)
	}

	labels = make([]int, len(points))
	for i, s := range state {
		if s == Noise {
			labels[i] = Noise
			continue
		}
		labels[i] = s - 1
	}
	return labels, next, nil
}

// expand grows a cluster from a core point breadth-first.
func expand(state []int, seed int, neighbors []int, id, minSamples int, regionQuery func(int) []int) {
	state[seed] = id
	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]
		if state[idx] == Noise {
			state[idx] = id // border point
		}
		if state[idx] != 0 {
			continue
		}
		state[idx] = id
		if more := regionQuery(idx); len(more) >= minSamples {
			neighbors = append(neighbors, more...)
		}
	}
}
