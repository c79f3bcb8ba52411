// Package waveform models one-day multichannel waveform bundles and their
// decomposition into overlapping analysis windows.
//
// A bundle arrives already cleaned, filtered and resampled to the goal
// sampling rate; producing it is the preprocessor's business. This package
// only slices it and rejects what cannot be correlated.
package waveform

import (
	"fmt"
	"time"
)

// ChannelID identifies one sensor channel.
type ChannelID struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

// NetSta returns the net.sta identifier used in pair names.
func (c ChannelID) NetSta() string {
	return c.Network + "." + c.Station
}

// Component returns the component code, the last letter of the channel name.
func (c ChannelID) Component() string {
	if c.Channel == "" {
		return ""
	}
	return c.Channel[len(c.Channel)-1:]
}

func (c ChannelID) String() string {
	return fmt.Sprintf("%s.%s.%s.%s", c.Network, c.Station, c.Location, c.Channel)
}

// Segment is a contiguous run of samples at a fixed sampling rate.
type Segment struct {
	Start      time.Time
	SampleRate float64
	Data       []float64
}

// End returns the time just past the segment's last sample.
func (s Segment) End() time.Time {
	return s.Start.Add(time.Duration(float64(len(s.Data)) / s.SampleRate * float64(time.Second)))
}

// Channel is one sensor channel's data for a day, as ordered contiguous
// segments. More than one segment means the day has gaps the preprocessor
// could not interpolate.
type Channel struct {
	ID       ChannelID
	Segments []Segment
}

// Bundle is a collection of channels covering one calendar day. It is owned
// exclusively by the processing pipeline for the duration of one job.
type Bundle struct {
	Channels []Channel
}

// Empty reports whether the bundle holds no samples at all.
func (b *Bundle) Empty() bool {
	if b == nil {
		return true
	}
	for _, ch := range b.Channels {
		for _, seg := range ch.Segments {
			if len(seg.Data) > 0 {
				return false
			}
		}
	}
	return true
}

// Span returns the earliest and latest sample times over all channels.
func (b *Bundle) Span() (start, end time.Time, ok bool) {
	for _, ch := range b.Channels {
		for _, seg := range ch.Segments {
			if len(seg.Data) == 0 {
				continue
			}
			if !ok || seg.Start.Before(start) {
				start = seg.Start
			}
			if segEnd := seg.End(); !ok || segEnd.After(end) {
				end = segEnd
			}
			ok = true
		}
	}
	return start, end, ok
}

// MaxSamples returns the largest per-channel sample count in the bundle.
func (b *Bundle) MaxSamples() int {
	max := 0
	for _, ch := range b.Channels {
		n := 0
		for _, seg := range ch.Segments {
			n += len(seg.Data)
		}
		if n > max {
			max = n
		}
	}
	return max
}
