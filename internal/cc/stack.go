package cc

import (
	"math"
	"math/cmplx"

	"github.com/seismonet/noisecc/internal/types"
)

// Stack combines all window-level correlations of one key into a single
// daily CCF. With the linear method this is the arithmetic mean; with pws
// the mean is weighted by the phase coherence across windows (Schimmel &
// Paulssen, 1997). Returns nil when no windows contributed.
func Stack(corrs [][]float64, params *types.Params, cache *FFTCache) []float64 {
	if len(corrs) == 0 {
		return nil
	}
	if params.StackMethod == types.StackPWS {
		return phaseWeightedStack(corrs, params.PWSTimegate, params.PWSPower, params.SamplingRate, cache)
	}
	return linearStack(corrs)
}

func linearStack(corrs [][]float64) []float64 {
	n := len(corrs[0])
	out := make([]float64, n)
	for _, c := range corrs {
		for i, v := range c {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(corrs))
	}
	return out
}

// phaseWeightedStack weights the linear mean by the coherence of the
// windows' instantaneous phases: unit phasors of each window's analytic
// signal are averaged across windows, the magnitude of that average is
// smoothed over the time gate and raised to the configured power. Power 0
// degenerates to the linear mean.
func phaseWeightedStack(corrs [][]float64, timegate, power, fs float64, cache *FFTCache) []float64 {
	n := len(corrs[0])

	phasorSum := make([]complex128, n)
	for _, c := range corrs {
		analytic := analyticSignal(c, cache)
		for i, v := range analytic {
			if r := cmplx.Abs(v); r > 0 {
				phasorSum[i] += v / complex(r, 0)
			}
		}
	}

	coherence := make([]float64, n)
	for i, v := range phasorSum {
		coherence[i] = cmplx.Abs(v) / float64(len(corrs))
	}
	coherence = boxcarSmooth(coherence, int(timegate*fs))

	mean := linearStack(corrs)
	for i := range mean {
		mean[i] *= math.Pow(coherence[i], power)
	}
	return mean
}

// analyticSignal computes the analytic signal of x by zeroing the negative
// frequencies of its spectrum and doubling the positive ones.
func analyticSignal(x []float64, cache *FFTCache) []complex128 {
	n := len(x)
	fft := cache.Cmplx(n)

	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeff := fft.Coefficients(nil, seq)

	half := n / 2
	for k := 1; k < half; k++ {
		coeff[k] *= 2
	}
	if n%2 != 0 {
		coeff[half] *= 2
	}
	for k := half + 1; k < n; k++ {
		coeff[k] = 0
	}

	analytic := fft.Sequence(nil, coeff)
	for i := range analytic {
		analytic[i] /= complex(float64(n), 0)
	}
	return analytic
}

// boxcarSmooth applies a centered moving average of the given width,
// shrinking the kernel at the edges.
func boxcarSmooth(x []float64, width int) []float64 {
	if width <= 1 {
		return x
	}
	half := width / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(x) {
			hi = len(x) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
