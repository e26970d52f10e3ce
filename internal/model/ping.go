package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Channel is the network activity that produced a ping. It is informational
// only and never influences inference.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelSMS   Channel = "sms"
	ChannelData  Channel = "data"
)

// AllChannels returns all defined channels.
func AllChannels() []Channel {
	return []Channel{ChannelVoice, ChannelSMS, ChannelData}
}

// ParseChannel maps a raw cell-type value to a Channel. "call" is accepted
// as an alias for voice since carrier exports use both spellings.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voice", "call":
		return ChannelVoice, nil
	case "sms":
		return ChannelSMS, nil
	case "data":
		return ChannelData, nil
	}
	return "", eris.Errorf("model: unknown channel %q", s)
}

// Ping is one triangulated location fix for a subscriber. RegionID is empty
// when the fix fell outside every known region.
type Ping struct {
	ID           int64     `json:"ping_id" yaml:"ping_id"`
	SubscriberID int64     `json:"subscriber" yaml:"subscriber"`
	Time         time.Time `json:"utc_time" yaml:"utc_time"`
	Latitude     float64   `json:"latitude" yaml:"latitude"`
	Longitude    float64   `json:"longitude" yaml:"longitude"`
	RegionID     string    `json:"state,omitempty" yaml:"state,omitempty"`
	Channel      Channel   `json:"cell_type" yaml:"cell_type"`
}

// Resolved reports whether the ping was matched to a region at ingestion.
func (p Ping) Resolved() bool {
	return p.RegionID != ""
}

// PingFilter bounds a ping query to an inclusive UTC time window. Nil
// bounds are open.
type PingFilter struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the filter window.
func (f PingFilter) Contains(t time.Time) bool {
	if f.Start != nil && t.Before(*f.Start) {
		return false
	}
	if f.End != nil && t.After(*f.End) {
		return false
	}
	return true
}

// Validate rejects windows whose start is after their end.
func (f PingFilter) Validate() error {
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return eris.New("model: filter start is after end")
	}
	return nil
}
