// Package inference turns a subscriber's pings into region intervals. It
// holds the pluggable strategies, the registry that resolves them by method
// id and the service that wires them to a ping source.
package inference

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jonnison/tower-jumps/internal/model"
)

// Strategy summarizes a subscriber's pings as a single interval. Infer must
// not mutate pings and returns nil when the pings carry no usable signal.
// Implementations are stateless and safe for concurrent use.
type Strategy interface {
	Method() model.Method
	Name() string
	Infer(subscriberID int64, pings []model.Ping) *model.Interval
}

// TimelineStrategy is a Strategy that can also return its ordered,
// non-overlapping intervals instead of one summary.
type TimelineStrategy interface {
	Strategy
	Timeline(subscriberID int64, pings []model.Ping) []model.Interval
}

// SinglePassStrategy builds the summary and the timeline from one analysis of
// the pings. The service prefers it over separate Infer and Timeline calls.
type SinglePassStrategy interface {
	TimelineStrategy
	InferWithTimeline(subscriberID int64, pings []model.Ping) (*model.Interval, []model.Interval)
}

// Constructor builds a fresh strategy instance.
type Constructor func() Strategy

// Output selects what an inference call returns.
type Output string

const (
	OutputSummary  Output = "summary"
	OutputTimeline Output = "timeline"
)

// ParseOutput validates an output mode. Empty input yields OutputSummary.
func ParseOutput(s string) (Output, error) {
	switch Output(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputSummary:
		return OutputSummary, nil
	case OutputTimeline:
		return OutputTimeline, nil
	}
	return "", eris.Errorf("inference: unknown output %q (want summary or timeline)", s)
}
