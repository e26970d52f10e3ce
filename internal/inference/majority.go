package inference

import (
	"github.com/jonnison/tower-jumps/internal/model"
)

// MajorityVote attributes the whole observed window to the region holding
// the most pings.
type MajorityVote struct{}

// NewMajorityVote returns a majority vote strategy.
func NewMajorityVote() *MajorityVote {
	return &MajorityVote{}
}

func (*MajorityVote) Method() model.Method { return model.MethodMajorityVote }

func (*MajorityVote) Name() string { return "Majority vote" }

// Infer returns one interval spanning every ping. Confidence is the winning
// region's share of all pings, unresolved ones included.
func (m *MajorityVote) Infer(subscriberID int64, pings []model.Ping) *model.Interval {
	if len(pings) == 0 {
		return nil
	}

	regions := make([]string, len(pings))
	for i, p := range pings {
		regions[i] = p.RegionID
	}
	region, n := plurality(regions)
	start, end := span(pings)

	return &model.Interval{
		SubscriberID:  subscriberID,
		Start:         start,
		End:           end,
		RegionID:      region,
		PingCount:     len(pings),
		ConfidencePct: model.ClampConfidence(100 * float64(n) / float64(len(pings))),
		Method:        m.Method(),
	}
}

// Timeline is the single summary interval, or nil.
func (m *MajorityVote) Timeline(subscriberID int64, pings []model.Ping) []model.Interval {
	iv := m.Infer(subscriberID, pings)
	if iv == nil {
		return nil
	}
	return []model.Interval{*iv}
}
