package inference

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnison/tower-jumps/internal/model"
)

func newClustering() *Clustering {
	return NewClustering(DefaultClusteringOptions())
}

// twoGroups is five NY pings over four minutes, then five NJ pings 500 m
// away starting ten minutes after the first group ends.
func twoGroups() []model.Ping {
	var pings []model.Ping
	for i := range 5 {
		pings = append(pings, ping(int64(i+1), float64(i), float64(i*10), "NY"))
	}
	for i := range 5 {
		pings = append(pings, ping(int64(i+6), float64(14+i), 500+float64(i*10), "NJ"))
	}
	return pings
}

func TestClustering_Empty(t *testing.T) {
	assert.Nil(t, newClustering().Infer(1, nil))
	assert.Nil(t, newClustering().Timeline(1, nil))
}

func TestClustering_NoClusters(t *testing.T) {
	t.Run("single ping", func(t *testing.T) {
		assert.Nil(t, newClustering().Infer(1, []model.Ping{ping(1, 0, 0, "NY")}))
	})
	t.Run("all pings far apart", func(t *testing.T) {
		pings := []model.Ping{ping(1, 0, 0, "NY"), ping(2, 10, 2000, "NY"), ping(3, 20, 4000, "NJ")}
		assert.Nil(t, newClustering().Infer(1, pings))
	})
}

func TestClustering_NoiseAsCluster(t *testing.T) {
	opts := DefaultClusteringOptions()
	opts.NoiseAsCluster = true
	c := NewClustering(opts)

	iv := c.Infer(3, []model.Ping{ping(1, 0, 0, "NY")})
	require.NotNil(t, iv)
	assert.Equal(t, "NY", iv.RegionID)
	assert.Equal(t, 100.0, iv.ConfidencePct)
	assert.Equal(t, 1, iv.PingCount)
	assert.Equal(t, iv.Start, iv.End)
}

func TestClustering_TwoDistinctClusters(t *testing.T) {
	pings := twoGroups()
	c := newClustering()

	want := []model.Interval{
		{SubscriberID: 9, Start: at(0), End: at(4), RegionID: "NY", PingCount: 5, ConfidencePct: 64.29, Method: model.MethodClustering},
		{SubscriberID: 9, Start: at(14), End: at(18), RegionID: "NJ", PingCount: 5, ConfidencePct: 100, Method: model.MethodClustering},
	}
	if diff := cmp.Diff(want, c.Timeline(9, pings)); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}

	iv := c.Infer(9, pings)
	require.NotNil(t, iv)
	assert.Equal(t, at(0), iv.Start)
	assert.Equal(t, at(18), iv.End)
	// One segment each; the tie goes to the lower code.
	assert.Equal(t, "NJ", iv.RegionID)
	assert.Equal(t, 100.0, iv.ConfidencePct)
	assert.Equal(t, 10, iv.PingCount)
}

func TestClustering_ShortFlipMerged(t *testing.T) {
	pings := []model.Ping{
		ping(1, 0, 0, "NY"),
		ping(2, 2, 20, "NY"),
		ping(3, 4, 40, "NY"),
		// 60 s after the NY group ends, 2 km away and in NJ.
		ping(4, 5, 2000, "NJ"),
		ping(5, 5.5, 2010, "NJ"),
	}
	c := newClustering()

	tl := c.Timeline(1, pings)
	require.Len(t, tl, 1)
	assert.Equal(t, "NY", tl[0].RegionID)
	assert.Equal(t, at(0), tl[0].Start)
	assert.Equal(t, at(5.5), tl[0].End)
	assert.Equal(t, 5, tl[0].PingCount)

	iv := c.Infer(1, pings)
	require.NotNil(t, iv)
	assert.Equal(t, "NY", iv.RegionID)
}

func TestClustering_SameRegionMergedAcrossLongGap(t *testing.T) {
	pings := []model.Ping{
		ping(1, 0, 0, "NY"), ping(2, 1, 10, "NY"),
		ping(3, 60, 5000, "NY"), ping(4, 61, 5010, "NY"),
	}
	tl := newClustering().Timeline(1, pings)
	require.Len(t, tl, 1)
	assert.Equal(t, at(0), tl[0].Start)
	assert.Equal(t, at(61), tl[0].End)
	assert.Equal(t, 4, tl[0].PingCount)
}

func TestClustering_MergeNeverShrinksEnd(t *testing.T) {
	c := newClustering()
	merged := c.merge([]segment{
		{start: at(0), end: at(30), region: "NY", pings: 4, confidence: 70},
		{start: at(10), end: at(12), region: "NJ", pings: 2, confidence: 90},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, at(30), merged[0].end)
	assert.Equal(t, "NY", merged[0].region)
	assert.Equal(t, 6, merged[0].pings)
	assert.Equal(t, 90.0, merged[0].confidence)
}

func TestClustering_TemporalConfidence(t *testing.T) {
	tests := []struct {
		name      string
		cur, next segment
		want      float64
	}{
		{"dwell is a quarter of the gap", segment{start: at(0), end: at(5)}, segment{start: at(20)}, 25},
		{"capped at 100", segment{start: at(0), end: at(30)}, segment{start: at(10)}, 100},
		{"same start", segment{start: at(0), end: at(0)}, segment{start: at(0)}, 100},
		{"instant cluster", segment{start: at(0), end: at(0)}, segment{start: at(10)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, temporalConfidence(tt.cur, tt.next), 1e-9)
		})
	}
}

func TestClustering_LastClusterHasFullTemporalConfidence(t *testing.T) {
	segs := newClustering().score([][]model.Ping{
		{ping(1, 0, 0, "NY"), ping(2, 0, 0, "NJ")},
	})
	require.Len(t, segs, 1)
	// spatial 50, temporal 100 by rule even though the cluster has no duration.
	assert.InDelta(t, 75.0, segs[0].confidence, 1e-9)
}

func TestClustering_UnresolvedPingsNeverWin(t *testing.T) {
	pings := []model.Ping{
		ping(1, 0, 0, ""), ping(2, 1, 10, ""), ping(3, 2, 20, "NY"),
	}
	tl := newClustering().Timeline(1, pings)
	require.Len(t, tl, 1)
	assert.Equal(t, "NY", tl[0].RegionID)
	// spatial 33.33, temporal 100.
	assert.Equal(t, 66.67, tl[0].ConfidencePct)
}

func TestClustering_PermutationInvariant(t *testing.T) {
	pings := twoGroups()
	pings = append(pings, ping(11, 15, 510, "NY"), ping(12, 30, 20, "NY"))
	c := newClustering()
	want := c.Infer(1, pings)
	wantTL := c.Timeline(1, pings)
	require.NotNil(t, want)

	rng := rand.New(rand.NewPCG(7, 11))
	for range 20 {
		shuffled := append([]model.Ping(nil), pings...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, c.Infer(1, shuffled))
		if diff := cmp.Diff(wantTL, c.Timeline(1, shuffled)); diff != "" {
			t.Fatalf("timeline depends on input order (-want +got):\n%s", diff)
		}
	}
}

func TestClustering_DoesNotMutateInput(t *testing.T) {
	pings := twoGroups()
	// Reverse so the working copy has to be re-sorted.
	for i, j := 0, len(pings)-1; i < j; i, j = i+1, j-1 {
		pings[i], pings[j] = pings[j], pings[i]
	}
	before := append([]model.Ping(nil), pings...)
	_ = newClustering().Infer(1, pings)
	_ = newClustering().Timeline(1, pings)
	assert.Equal(t, before, pings)
}

func TestClustering_InvariantsHold(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	regions := []string{"NY", "NJ", "CT", ""}
	c := newClustering()
	for range 50 {
		n := rng.IntN(40)
		pings := make([]model.Ping, n)
		for i := range pings {
			pings[i] = ping(int64(i), rng.Float64()*600, rng.Float64()*3000, regions[rng.IntN(len(regions))])
		}
		if iv := c.Infer(1, pings); iv != nil {
			assert.False(t, iv.End.Before(iv.Start))
			assert.GreaterOrEqual(t, iv.ConfidencePct, 0.0)
			assert.LessOrEqual(t, iv.ConfidencePct, 100.0)
			assert.Equal(t, n, iv.PingCount)
		}
		tl := c.Timeline(1, pings)
		for i, seg := range tl {
			assert.False(t, seg.End.Before(seg.Start))
			if i > 0 {
				assert.False(t, seg.Start.Before(tl[i-1].Start), "timeline must be chronological")
			}
		}
	}
}

func TestClusteringOptions_Defaults(t *testing.T) {
	c := NewClustering(ClusteringOptions{})
	assert.Equal(t, DefaultClusteringOptions(), c.Options())
	assert.Equal(t, 180*time.Second, c.Options().ShortSwitch)
}

func TestClustering_InferWithTimelineMatchesSeparateCalls(t *testing.T) {
	c := newClustering()
	pings := twoGroups()

	iv, tl := c.InferWithTimeline(7, pings)
	require.NotNil(t, iv)
	if diff := cmp.Diff(c.Infer(7, pings), iv); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Timeline(7, pings), tl); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}

	iv, tl = c.InferWithTimeline(7, nil)
	assert.Nil(t, iv)
	assert.Nil(t, tl)
}
