package cc

import (
	"math/cmplx"

	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

// Pair is one station-pair/component combination to correlate within a
// window, as indices into the window's frame slice.
type Pair struct {
	A, B       int
	Name       string // NET.STA1_NET.STA2
	Components string // e.g. "ZZ"
}

// EnumeratePairs lists all unordered channel combinations of the window
// (including self-pairs when autocorr is set) whose component pair was
// requested in the configuration.
func EnumeratePairs(frames []waveform.Frame, components map[string]bool, autocorr bool) []Pair {
	var pairs []Pair
	for i := range frames {
		jStart := i + 1
		if autocorr {
			jStart = i
		}
		for j := jStart; j < len(frames); j++ {
			comp := frames[i].ID.Component() + frames[j].ID.Component()
			if !components[comp] {
				continue
			}
			pairs = append(pairs, Pair{
				A:          i,
				B:          j,
				Name:       frames[i].ID.NetSta() + "_" + frames[j].ID.NetSta(),
				Components: comp,
			})
		}
	}
	return pairs
}

// ShouldWhiten decides, per channel pair being correlated, whether whitened
// spectra are used. "all" whitens everything except a channel correlated
// with itself; "components-different" whitens only when the component codes
// differ.
func ShouldWhiten(policy string, a, b waveform.ChannelID) bool {
	switch policy {
	case types.WhitenAll:
		return a != b
	case types.WhitenComponentsDifferent:
		return a.Component() != b.Component()
	default:
		return false
	}
}

// Correlate computes the time-domain cross-correlation of two channels from
// their spectra: one spectrum is multiplied by the conjugate of the other,
// inverse-transformed, scaled by the product of the two channels' energies,
// and truncated to lags in [-lagSamples, +lagSamples]. The output length is
// always 2*lagSamples+1, independent of the FFT length used internally.
func Correlate(specA, specB []complex128, energyA, energyB float64, lagSamples, nfft int, cache *FFTCache) []float64 {
	prod := make([]complex128, len(specA))
	for k := range prod {
		prod[k] = specA[k] * cmplx.Conj(specB[k])
	}

	seq := cache.Real(nfft).Sequence(nil, prod)

	norm := energyA * energyB * float64(nfft)
	if norm == 0 {
		return make([]float64, 2*lagSamples+1)
	}

	out := make([]float64, 2*lagSamples+1)
	for i := range out {
		lag := i - lagSamples
		out[i] = seq[((lag%nfft)+nfft)%nfft] / norm
	}
	return out
}
