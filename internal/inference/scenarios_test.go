package inference

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jonnison/tower-jumps/internal/model"
)

type scenario struct {
	Name   string       `yaml:"name"`
	Method int          `yaml:"method"`
	Pings  [][]any      `yaml:"pings"`
	Want   scenarioWant `yaml:"want"`
}

type scenarioWant struct {
	Empty      bool     `yaml:"empty"`
	Region     string   `yaml:"region"`
	Confidence *float64 `yaml:"confidence"`
	PingCount  int      `yaml:"ping_count"`
	Start      float64  `yaml:"start"`
	End        float64  `yaml:"end"`
	Timeline   []string `yaml:"timeline"`
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	data, err := os.ReadFile("testdata/scenarios.yaml")
	require.NoError(t, err)
	var out []scenario
	require.NoError(t, yaml.Unmarshal(data, &out))
	require.NotEmpty(t, out)
	return out
}

func TestScenarios(t *testing.T) {
	reg, err := DefaultRegistry(DefaultClusteringOptions())
	require.NoError(t, err)

	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			pings := make([]model.Ping, len(sc.Pings))
			for i, p := range sc.Pings {
				require.Len(t, p, 3)
				region, _ := p[2].(string)
				pings[i] = ping(int64(i+1), toFloat(p[0]), toFloat(p[1]), region)
			}

			s, err := reg.Resolve(model.Method(sc.Method))
			require.NoError(t, err)

			iv := s.Infer(1, pings)
			if sc.Want.Empty {
				assert.Nil(t, iv)
				return
			}
			require.NotNil(t, iv)
			assert.Equal(t, sc.Want.Region, iv.RegionID)
			assert.Equal(t, sc.Want.PingCount, iv.PingCount)
			assert.Equal(t, at(sc.Want.Start), iv.Start)
			assert.Equal(t, at(sc.Want.End), iv.End)
			if sc.Want.Confidence != nil {
				assert.InDelta(t, *sc.Want.Confidence, iv.ConfidencePct, 0.01)
			}

			if sc.Want.Timeline != nil {
				ts, ok := s.(TimelineStrategy)
				require.True(t, ok)
				var got []string
				for _, seg := range ts.Timeline(1, pings) {
					got = append(got, seg.RegionID)
				}
				assert.Equal(t, sc.Want.Timeline, got)
			}
		})
	}
}
