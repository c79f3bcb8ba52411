package cc

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

func TestBandBins(t *testing.T) {
	// fs = 2 Hz, nfft = 3600: bin spacing 1/1800 Hz.
	band, ok := BandBins(types.FilterBand{ID: 1, Low: 0.1, High: 0.5}, 3600, 0.5)
	if !ok {
		t.Fatal("expected a valid band")
	}
	if band.P1 != 180 || band.P2 != 900 {
		t.Errorf("passband bins [%d, %d], want [180, 900]", band.P1, band.P2)
	}
	if band.LowOuter != 80 || band.HighOuter != 1000 {
		t.Errorf("padded bins [%d, %d], want [80, 1000]", band.LowOuter, band.HighOuter)
	}
}

func TestBandBinsClamped(t *testing.T) {
	// Low corner near DC: the pad must clamp at bin 1, the high pad at Nyquist.
	band, ok := BandBins(types.FilterBand{ID: 1, Low: 0.001, High: 0.99}, 2000, 0.5)
	if !ok {
		t.Fatal("expected a valid band")
	}
	if band.LowOuter < 1 {
		t.Errorf("LowOuter = %d, want >= 1", band.LowOuter)
	}
	if band.HighOuter > 1000 {
		t.Errorf("HighOuter = %d, want <= Nyquist bin 1000", band.HighOuter)
	}
}

func TestBandBinsEmptyPassband(t *testing.T) {
	// Passband above Nyquist holds no bins.
	if _, ok := BandBins(types.FilterBand{ID: 1, Low: 5, High: 6}, 1000, 0.5); ok {
		t.Fatal("expected no valid band above Nyquist")
	}
}

func TestWhitenFlattensPassband(t *testing.T) {
	cache := NewFFTCache()
	fs := 2.0
	data := randSignal(3600, 11)
	nfft := NextFastLen(len(data))

	spec := Spectrum(data, nfft, cache)
	mag := AmplitudeSpectrum(data, fs, nfft, cache)
	band, ok := BandBins(types.FilterBand{ID: 1, Low: 0.1, High: 0.5}, nfft, 1/fs)
	if !ok {
		t.Fatal("expected a valid band")
	}

	white := Whiten(spec, mag, band)

	// Inside the passband the magnitude is flat (phase preserved).
	ref := cmplx.Abs(white[band.P1])
	for k := band.P1; k <= band.P2; k++ {
		if math.Abs(cmplx.Abs(white[k])-ref) > 1e-9*ref {
			t.Fatalf("bin %d: |W| = %g, want flat %g", k, cmplx.Abs(white[k]), ref)
		}
		wantPhase := cmplx.Phase(spec[k])
		if math.Abs(cmplx.Phase(white[k])-wantPhase) > 1e-9 {
			t.Fatalf("bin %d: phase changed by whitening", k)
		}
	}

	// Outside the padded band everything is zero.
	for k := 0; k < band.LowOuter; k++ {
		if white[k] != 0 {
			t.Fatalf("bin %d below the padded band is %v, want 0", k, white[k])
		}
	}
	for k := band.HighOuter + 1; k < len(white); k++ {
		if white[k] != 0 {
			t.Fatalf("bin %d above the padded band is %v, want 0", k, white[k])
		}
	}

	// Apodization ramps stay below the flat level.
	if v := cmplx.Abs(white[band.LowOuter]); v >= ref {
		t.Errorf("pad edge bin magnitude %g, want < %g", v, ref)
	}

	// The input spectrum is shared across bands and must not be mutated.
	orig := Spectrum(data, nfft, cache)
	for k := range spec {
		if spec[k] != orig[k] {
			t.Fatal("Whiten mutated the input spectrum")
		}
	}
}

func TestPoolHorizontalMagnitudes(t *testing.T) {
	frames := []waveform.Frame{
		{ID: waveform.ChannelID{Network: "BE", Station: "STA1", Channel: "HHE"}},
		{ID: waveform.ChannelID{Network: "BE", Station: "STA1", Channel: "HHN"}},
		{ID: waveform.ChannelID{Network: "BE", Station: "STA1", Channel: "HHZ"}},
		{ID: waveform.ChannelID{Network: "BE", Station: "STA2", Channel: "HHE"}},
	}
	mags := [][]float64{
		{2, 4},
		{4, 8},
		{10, 10},
		{6, 6},
	}

	PoolHorizontalMagnitudes(frames, mags)

	for k, want := range []float64{3, 6} {
		if mags[0][k] != want || mags[1][k] != want {
			t.Errorf("bin %d: pooled E/N = %v, %v, want %v", k, mags[0][k], mags[1][k], want)
		}
	}
	if mags[2][0] != 10 {
		t.Error("vertical component magnitude was pooled; it must never be")
	}
	if mags[3][0] != 6 {
		t.Error("lone horizontal without a counterpart was pooled")
	}
}
