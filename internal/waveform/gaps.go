package waveform

import (
	"math"

	"github.com/seismonet/noisecc/internal/log"
)

// Frame is one channel's samples within one window.
type Frame struct {
	ID         ChannelID
	SampleRate float64
	Data       []float64
}

// Frames extracts one frame per channel for the window. A channel whose
// in-window data spans more than one segment has an internal gap and is
// dropped entirely; gaps are never interpolated at this stage. Truncation at
// the window edges is not a gap.
func Frames(b *Bundle, w Window) []Frame {
	var frames []Frame
	for _, ch := range b.Channels {
		frame, ok := frameForChannel(ch, w)
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

func frameForChannel(ch Channel, w Window) (Frame, bool) {
	var hit *Segment
	for i := range ch.Segments {
		seg := &ch.Segments[i]
		if len(seg.Data) == 0 || !seg.Start.Before(w.End) || !seg.End().After(w.Start) {
			continue
		}
		if hit != nil {
			log.Debugf("%s contains gap(s) in window %s, removing it", ch.ID, w.Start)
			return Frame{}, false
		}
		hit = seg
	}
	if hit == nil {
		return Frame{}, false
	}

	fs := hit.SampleRate
	i0 := 0
	if dt := w.Start.Sub(hit.Start).Seconds(); dt > 0 {
		i0 = int(math.Ceil(dt*fs - 1e-9))
	}
	i1 := int(math.Ceil(w.End.Sub(hit.Start).Seconds()*fs - 1e-9))
	if i1 > len(hit.Data) {
		i1 = len(hit.Data)
	}
	if i1 <= i0 {
		return Frame{}, false
	}

	return Frame{ID: ch.ID, SampleRate: fs, Data: hit.Data[i0:i1]}, true
}

// SelectFrames applies the gap-filter policy to a window's frames: at least
// two channels must remain, all surviving channels must match the longest
// sample count present (shorter ones are boundary-truncated and dropped), and
// the common count must exceed 2*maxlag*fs+1 so the requested lag range fits
// in the correlation. Survivors are demeaned into fresh buffers; the bundle
// is never mutated.
func SelectFrames(frames []Frame, maxlag float64) []Frame {
	if len(frames) < 2 {
		return nil
	}

	base := 0
	for _, f := range frames {
		if len(f.Data) > base {
			base = len(f.Data)
		}
	}
	if len(frames) > 0 {
		fs := frames[0].SampleRate
		if float64(base) <= 2*maxlag*fs+1 {
			log.Debugf("all frames too short to export +-maxlag")
			return nil
		}
	}

	var kept []Frame
	for _, f := range frames {
		if len(f.Data) != base {
			log.Debugf("%s is too short in this window, removing it", f.ID)
			continue
		}
		kept = append(kept, demean(f))
	}
	if len(kept) < 2 {
		return nil
	}
	return kept
}

func demean(f Frame) Frame {
	mean := 0.0
	for _, v := range f.Data {
		mean += v
	}
	mean /= float64(len(f.Data))

	out := make([]float64, len(f.Data))
	for i, v := range f.Data {
		out[i] = v - mean
	}
	return Frame{ID: f.ID, SampleRate: f.SampleRate, Data: out}
}
