package types

import "time"

// CCFKey identifies all correlations sharing a pair, component pair and
// filter band within one day. It is used directly as a map key; results are
// never identified by parsing composite strings.
type CCFKey struct {
	Pair       string
	Components string
	FilterID   int
}

// WindowCorrelation is the cross-correlation of one channel pair over a
// single analysis window for one filter band.
type WindowCorrelation struct {
	Pair        string
	Components  string
	FilterID    int
	Day         string
	WindowStart time.Time
	SampleRate  float64
	Data        []float64
}

// DailyStack is the aggregation of all window correlations sharing a CCFKey
// over one day. NCorr is the number of windows stacked.
type DailyStack struct {
	Pair        string
	Components  string
	FilterID    int
	Day         string
	SampleRate  float64
	SampleCount int
	NCorr       int
	Data        []float64
}
