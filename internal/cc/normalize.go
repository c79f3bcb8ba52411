// Package cc implements the cross-correlation numeric core: amplitude
// normalization, spectral whitening, frequency-domain correlation and
// window stacking.
package cc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"
)

// Edge taper fraction applied to every frame before the FFT, per side.
const taperFraction = 0.04

// Percentile band used to estimate the clipping RMS.
const (
	clipLowPercentile  = 0.01
	clipHighPercentile = 0.99
)

// Windsorize normalizes frame amplitudes in place. factor -1 reduces each
// sample to its sign (1-bit normalization); factor k > 0 clips samples to
// +-k*RMS, with the RMS estimated over the samples inside the 1st-99th
// percentile band so outliers do not inflate their own clip level; factor 0
// leaves the frame untouched.
func Windsorize(data []float64, factor float64) {
	switch {
	case factor == -1:
		for i, v := range data {
			switch {
			case v > 0:
				data[i] = 1
			case v < 0:
				data[i] = -1
			default:
				data[i] = 0
			}
		}
	case factor > 0:
		limit := factor * inlierRMS(data)
		for i, v := range data {
			if v > limit {
				data[i] = limit
			} else if v < -limit {
				data[i] = -limit
			}
		}
	}
}

// inlierRMS returns the RMS of the samples within the percentile band.
func inlierRMS(data []float64) float64 {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	lo := stat.Quantile(clipLowPercentile, stat.Empirical, sorted, nil)
	hi := stat.Quantile(clipHighPercentile, stat.Empirical, sorted, nil)

	sum := 0.0
	n := 0
	for _, v := range data {
		if v >= lo && v <= hi {
			sum += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Taper applies the fixed-ratio cosine edge taper in place to suppress
// spectral leakage.
func Taper(data []float64) {
	window.Tukey{Alpha: 2 * taperFraction}.Transform(data)
}
