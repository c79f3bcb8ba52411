package cc

import (
	"math"

	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

// Apodization pad, in FFT bins, on each side of the passband.
const napod = 100

// Band holds the FFT-bin geometry of one filter passband: [P1,P2] are the
// bins inside [low,high] and [LowOuter,HighOuter] include the apodization
// pads, clamped to the valid bin range.
type Band struct {
	P1, P2              int
	LowOuter, HighOuter int
}

// BandBins maps a filter passband onto FFT bins for the given transform
// length and sample spacing. ok is false when no bin falls inside the
// passband.
func BandBins(f types.FilterBand, nfft int, dt float64) (Band, bool) {
	fs := 1 / dt
	nyquistBin := nfft / 2

	p1 := int(math.Ceil(f.Low * float64(nfft) / fs))
	p2 := int(math.Floor(f.High * float64(nfft) / fs))
	if p2 > nyquistBin {
		p2 = nyquistBin
	}
	if p1 < 1 {
		p1 = 1
	}
	if p1 > p2 {
		return Band{}, false
	}

	b := Band{P1: p1, P2: p2, LowOuter: p1 - napod, HighOuter: p2 + napod}
	if b.LowOuter < 1 {
		b.LowOuter = 1
	}
	if b.HighOuter > nyquistBin {
		b.HighOuter = nyquistBin
	}
	return b, true
}

// Whiten flattens the spectrum inside the band while preserving phase: each
// bin is divided by the (possibly pooled) amplitude-spectrum magnitude,
// squared-cosine ramps apodize the pads, and everything outside the padded
// band is zeroed. A fresh buffer is returned; the input spectrum is shared
// across bands and never mutated.
func Whiten(spec []complex128, mag []float64, b Band) []complex128 {
	out := make([]complex128, len(spec))
	for k := b.LowOuter; k <= b.HighOuter && k < len(spec); k++ {
		if mag[k] == 0 {
			continue
		}
		v := spec[k] / complex(mag[k], 0)
		if k < b.P1 && b.P1 > b.LowOuter {
			c := math.Cos(math.Pi / 2 * float64(b.P1-k) / float64(b.P1-b.LowOuter))
			v *= complex(c*c, 0)
		} else if k > b.P2 && b.HighOuter > b.P2 {
			c := math.Cos(math.Pi / 2 * float64(k-b.P2) / float64(b.HighOuter-b.P2))
			v *= complex(c*c, 0)
		}
		out[k] = v
	}
	return out
}

// PoolHorizontalMagnitudes replaces the amplitude spectra of each station's E
// and N channels with their mean whenever both are present in the window.
// The two orthogonal horizontal channels feed rotation-derived components, so
// whitening them with independent noise estimates would artificially
// decorrelate them. Vertical components are never pooled.
func PoolHorizontalMagnitudes(frames []waveform.Frame, mags [][]float64) {
	byStation := make(map[string]map[string]int)
	for i, f := range frames {
		netsta := f.ID.NetSta()
		if byStation[netsta] == nil {
			byStation[netsta] = make(map[string]int)
		}
		byStation[netsta][f.ID.Component()] = i
	}

	for _, comps := range byStation {
		ie, okE := comps["E"]
		in, okN := comps["N"]
		if !okE || !okN {
			continue
		}
		me, mn := mags[ie], mags[in]
		pooled := make([]float64, len(me))
		for k := range pooled {
			pooled[k] = (me[k] + mn[k]) / 2
		}
		mags[ie] = pooled
		mags[in] = pooled
	}
}
