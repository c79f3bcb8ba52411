package waveform

import "time"

// Window is one fixed-duration analysis slice of a bundle.
type Window struct {
	Start time.Time
	End   time.Time
}

// Slice returns the window grid covering the bundle: start times advance by
// corrDuration*(1-overlap) seconds from the earliest sample, each window
// spanning corrDuration, capped at analysisDuration past the bundle start.
// The grid is a plain slice, so iteration is restartable. Windows without
// data survive here and fall out in frame extraction.
func Slice(b *Bundle, corrDuration, overlap, analysisDuration float64) []Window {
	start, end, ok := b.Span()
	if !ok {
		return nil
	}
	if limit := start.Add(seconds(analysisDuration)); limit.Before(end) {
		end = limit
	}

	step := corrDuration * (1 - overlap)
	span := seconds(corrDuration)

	var windows []Window
	for t := start; t.Before(end); t = t.Add(seconds(step)) {
		windows = append(windows, Window{Start: t, End: t.Add(span)})
	}
	return windows
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
