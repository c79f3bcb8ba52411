package cc

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// NextFastLen returns the smallest 5-smooth number >= n, the next FFT length
// that factors into 2, 3 and 5.
func NextFastLen(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for k%2 == 0 {
			k /= 2
		}
		for k%3 == 0 {
			k /= 3
		}
		for k%5 == 0 {
			k /= 5
		}
		if k == 1 {
			return m
		}
	}
}

// FFTCache holds transform plans keyed by length. FFT sizes vary with window
// length, so a cache is scoped to one day's job and discarded at job end;
// there is no process-wide plan cache.
type FFTCache struct {
	real  map[int]*fourier.FFT
	cmplx map[int]*fourier.CmplxFFT
}

// NewFFTCache creates an empty plan cache for one day's processing.
func NewFFTCache() *FFTCache {
	return &FFTCache{
		real:  make(map[int]*fourier.FFT),
		cmplx: make(map[int]*fourier.CmplxFFT),
	}
}

// Real returns the real-input FFT plan for length n.
func (c *FFTCache) Real(n int) *fourier.FFT {
	fft, ok := c.real[n]
	if !ok {
		fft = fourier.NewFFT(n)
		c.real[n] = fft
	}
	return fft
}

// Cmplx returns the complex FFT plan for length n.
func (c *FFTCache) Cmplx(n int) *fourier.CmplxFFT {
	fft, ok := c.cmplx[n]
	if !ok {
		fft = fourier.NewCmplxFFT(n)
		c.cmplx[n] = fft
	}
	return fft
}

// Spectrum computes the half-complex spectrum of data zero-padded to nfft.
func Spectrum(data []float64, nfft int, cache *FFTCache) []complex128 {
	padded := make([]float64, nfft)
	copy(padded, data)
	return cache.Real(nfft).Coefficients(nil, padded)
}

// AmplitudeSpectrum computes the square root of a periodogram PSD estimate of
// the frame, detrended by mean removal: the per-bin magnitude used to flatten
// spectra during whitening. It depends only on the frame, not on any filter
// band, so callers compute it once per window and reuse it across bands.
func AmplitudeSpectrum(data []float64, fs float64, nfft int, cache *FFTCache) []float64 {
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	padded := make([]float64, nfft)
	for i, v := range data {
		padded[i] = v - mean
	}

	spec := cache.Real(nfft).Coefficients(nil, padded)
	mag := make([]float64, len(spec))
	scale := 2 / (fs * float64(len(data)))
	for i, v := range spec {
		mag[i] = math.Sqrt(scale) * cmplx.Abs(v)
	}
	return mag
}

// rms returns sqrt(mean(x^2)).
func rms(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(data)))
}

// SignalEnergy is the RMS of the inverse transform of a spectrum over the
// full FFT length. It scales correlation amplitudes to a comparable level
// across channels; it is not a physical unit.
func SignalEnergy(spec []complex128, nfft int, cache *FFTCache) float64 {
	seq := cache.Real(nfft).Sequence(nil, spec)
	sum := 0.0
	for _, v := range seq {
		sum += v * v
	}
	// Sequence is unnormalized: it returns nfft times the signal.
	return math.Sqrt(sum/float64(nfft)) / float64(nfft)
}
