package inference

import (
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jonnison/tower-jumps/internal/cluster"
	"github.com/jonnison/tower-jumps/internal/model"
)

// DefaultShortSwitch is the longest region flip treated as a tower jump.
const DefaultShortSwitch = 180 * time.Second

// ClusteringOptions tunes the clustering strategy. Zero values take defaults.
type ClusteringOptions struct {
	EpsMeters   float64
	MinSamples  int
	ShortSwitch time.Duration
	// NoiseAsCluster groups every unclustered ping into one extra cluster
	// instead of dropping them.
	NoiseAsCluster bool
}

// DefaultClusteringOptions returns 300 m / 2 samples / 180 s.
func DefaultClusteringOptions() ClusteringOptions {
	return ClusteringOptions{
		EpsMeters:   cluster.DefaultEpsMeters,
		MinSamples:  cluster.DefaultMinSamples,
		ShortSwitch: DefaultShortSwitch,
	}
}

func (o ClusteringOptions) withDefaults() ClusteringOptions {
	d := DefaultClusteringOptions()
	if o.EpsMeters <= 0 {
		o.EpsMeters = d.EpsMeters
	}
	if o.MinSamples <= 0 {
		o.MinSamples = d.MinSamples
	}
	if o.ShortSwitch <= 0 {
		o.ShortSwitch = d.ShortSwitch
	}
	return o
}

// Clustering groups pings spatially with DBSCAN, scores each cluster and
// folds short region flips into the surrounding interval.
type Clustering struct {
	opts ClusteringOptions
}

// NewClustering returns a clustering strategy.
func NewClustering(opts ClusteringOptions) *Clustering {
	return &Clustering{opts: opts.withDefaults()}
}

var _ SinglePassStrategy = (*Clustering)(nil)

func (*Clustering) Method() model.Method { return model.MethodClustering }

func (*Clustering) Name() string { return "DBSCAN + smoothing" }

// Options returns the effective options.
func (c *Clustering) Options() ClusteringOptions { return c.opts }

// segment is one cluster, or a run of merged clusters.
type segment struct {
	start, end time.Time
	region     string
	pings      int
	confidence float64
}

// Infer collapses the merged timeline into one interval: the full span, the
// most common segment region and the best segment confidence.
func (c *Clustering) Infer(subscriberID int64, pings []model.Ping) *model.Interval {
	return c.summarize(subscriberID, len(pings), c.segments(pings))
}

// Timeline returns the merged segments as chronological intervals.
func (c *Clustering) Timeline(subscriberID int64, pings []model.Ping) []model.Interval {
	return c.intervals(subscriberID, c.segments(pings))
}

// InferWithTimeline returns Infer and Timeline from a single clustering pass.
func (c *Clustering) InferWithTimeline(subscriberID int64, pings []model.Ping) (*model.Interval, []model.Interval) {
	merged := c.segments(pings)
	return c.summarize(subscriberID, len(pings), merged), c.intervals(subscriberID, merged)
}

func (c *Clustering) summarize(subscriberID int64, total int, merged []segment) *model.Interval {
	if len(merged) == 0 {
		return nil
	}

	start, end := merged[0].start, merged[0].end
	regions := make([]string, len(merged))
	confs := make([]float64, len(merged))
	for i, s := range merged {
		if s.start.Before(start) {
			start = s.start
		}
		if s.end.After(end) {
			end = s.end
		}
		regions[i] = s.region
		confs[i] = s.confidence
	}
	region, _ := plurality(regions)

	return &model.Interval{
		SubscriberID:  subscriberID,
		Start:         start,
		End:           end,
		RegionID:      region,
		PingCount:     total,
		ConfidencePct: model.ClampConfidence(floats.Max(confs)),
		Method:        c.Method(),
	}
}

func (c *Clustering) intervals(subscriberID int64, merged []segment) []model.Interval {
	if len(merged) == 0 {
		return nil
	}
	out := make([]model.Interval, len(merged))
	for i, s := range merged {
		out[i] = model.Interval{
			SubscriberID:  subscriberID,
			Start:         s.start,
			End:           s.end,
			RegionID:      s.region,
			PingCount:     s.pings,
			ConfidencePct: model.ClampConfidence(s.confidence),
			Method:        c.Method(),
		}
	}
	return out
}

// segments runs clustering, scoring and the short-flip merge.
func (c *Clustering) segments(pings []model.Ping) []segment {
	if len(pings) == 0 {
		return nil
	}
	return c.merge(c.score(c.group(pings)))
}

// group clusters a sorted working copy of pings and returns the members of
// each cluster. Sorting first makes the result independent of input order.
func (c *Clustering) group(pings []model.Ping) [][]model.Ping {
	work := make([]model.Ping, len(pings))
	copy(work, pings)
	sort.SliceStable(work, func(i, j int) bool {
		a, b := work[i], work[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		if a.Longitude != b.Longitude {
			return a.Longitude < b.Longitude
		}
		return a.RegionID < b.RegionID
	})

	points := make([]cluster.Point, len(work))
	for i, p := range work {
		points[i] = cluster.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	labels, n, err := cluster.DBSCAN(points, cluster.Params{
		EpsMeters:  c.opts.EpsMeters,
		MinSamples: c.opts.MinSamples,
	})
	if err != nil {
		zap.L().Warn("inference: clustering failed", zap.Int("pings", len(pings)), zap.Error(err))
		return nil
	}

	groups := make([][]model.Ping, n)
	var noise []model.Ping
	for i, l := range labels {
		if l == cluster.Noise {
			noise = append(noise, work[i])
			continue
		}
		groups[l] = append(groups[l], work[i])
	}
	if c.opts.NoiseAsCluster && len(noise) > 0 {
		groups = append(groups, noise)
	}
	return groups
}

// score summarizes each cluster and orders them by earliest ping.
func (c *Clustering) score(groups [][]model.Ping) []segment {
	segs := make([]segment, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		start, end := span(g)
		regions := make([]string, len(g))
		for i, p := range g {
			regions[i] = p.RegionID
		}
		region, n := plurality(regions)
		segs = append(segs, segment{
			start:      start,
			end:        end,
			region:     region,
			pings:      len(g),
			confidence: 100 * float64(n) / float64(len(g)), // spatial, combined below
		})
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].start.Before(segs[j].start) })

	for i := range segs {
		temporal := 100.0
		if i < len(segs)-1 {
			temporal = temporalConfidence(segs[i], segs[i+1])
		}
		segs[i].confidence = stat.Mean([]float64{segs[i].confidence, temporal}, nil)
	}
	return segs
}

// temporalConfidence is a cluster's dwell time as a share of the time until
// the next cluster starts. The caller handles the last cluster.
func temporalConfidence(cur, next segment) float64 {
	denom := next.start.Sub(cur.start)
	if denom <= 0 {
		return 100
	}
	pct := 100 * cur.end.Sub(cur.start).Seconds() / denom.Seconds()
	return min(100, max(0, pct))
}

// merge folds segments in start order. A segment joins the running one when
// it has the same region or starts less than ShortSwitch after the running
// one ends; the running region is kept.
func (c *Clustering) merge(segs []segment) []segment {
	if len(segs) == 0 {
		return nil
	}
	out := make([]segment, 0, len(segs))
	cur := segs[0]
	for _, s := range segs[1:] {
		gap := s.start.Sub(cur.end)
		if s.region == cur.region || gap < c.opts.ShortSwitch {
			if s.end.After(cur.end) {
				cur.end = s.end
			}
			cur.pings += s.pings
			cur.confidence = max(cur.confidence, s.confidence)
			continue
		}
		out = append(out, cur)
		cur = s
	}
	return append(out, cur)
}
