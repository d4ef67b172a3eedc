package fir

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MagnitudeResponse returns |H| of taps at n evenly spaced frequencies from
// DC up to, but excluding, the sample rate. n must be at least len(taps).
func MagnitudeResponse(taps []float32, n int) []float64 {
	if n < len(taps) {
		n = len(taps)
	}
	padded := make([]float64, n)
	for i, h := range taps {
		padded[i] = float64(h)
	}

	coeffs := fft.FFTReal(padded)
	ret := make([]float64, n)
	for i, c := range coeffs {
		ret[i] = cmplx.Abs(c)
	}
	return ret
}

// GainAt is the magnitude of the response at freq for a filter running at sampleRate.
func GainAt(taps []float32, sampleRate, freq float64) float64 {
	var acc complex128
	for k, h := range taps {
		acc += complex(float64(h), 0) * cmplx.Exp(complex(0, -2*math.Pi*freq*float64(k)/sampleRate))
	}
	return cmplx.Abs(acc)
}
