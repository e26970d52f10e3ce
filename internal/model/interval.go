package model

import (
	"math"
	"time"
)

// Method identifies an inference strategy. Values are stable and appear in
// API requests as model_id.
type Method int

const (
	MethodMajorityVote Method = 1
	MethodClustering   Method = 2
	// MethodHMM is reserved for a hidden-Markov smoother; nothing registers it yet.
	MethodHMM Method = 3
)

// String returns the human-readable method label.
func (m Method) String() string {
	switch m {
	case MethodMajorityVote:
		return "Majority vote"
	case MethodClustering:
		return "Clustering + smoothing"
	case MethodHMM:
		return "Bayesian HMM"
	}
	return "Unknown"
}

// Interval is a contiguous span attributed to a single region.
type Interval struct {
	SubscriberID  int64     `json:"subscriber" yaml:"subscriber"`
	Start         time.Time `json:"interval_start" yaml:"interval_start"`
	End           time.Time `json:"interval_end" yaml:"interval_end"`
	RegionID      string    `json:"state" yaml:"state"`
	PingCount     int       `json:"ping_count" yaml:"ping_count"`
	ConfidencePct float64   `json:"confidence_pct" yaml:"confidence_pct"`
	Method        Method    `json:"method" yaml:"method"`
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ClampConfidence bounds a percentage to [0, 100] and rounds it to two
// decimal places, matching the NUMERIC(5,2) column it is reported as.
func ClampConfidence(pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return math.Round(pct*100) / 100
}
