package fir

import (
	"fmt"
	"math"
)

type WindowFunc func(int) []float32

type WindowType int

const (
	Hamming        WindowType = 0
	Hann           WindowType = 1
	BlackmanHarris WindowType = 2
	Blackman       WindowType = 3
)

var (
	// stopband attenuation in dB, used to size a filter for a given transition width
	windowMaxAttenuation = map[WindowType]float64{
		Hamming:        53,
		Hann:           44,
		BlackmanHarris: 92,
		Blackman:       74,
	}
	windowFuncs = map[WindowType]WindowFunc{
		Hamming:        HammingWindow,
		Hann:           HannWindow,
		Blackman:       BlackmanWindow,
		BlackmanHarris: BlackmanHarrisWindow,
	}
)

// cosineSum evaluates c0 - c1 cos(x) + c2 cos(2x) - c3 cos(3x) ... over ntaps points.
func cosineSum(ntaps int, coeffs ...float64) []float32 {
	ret := make([]float32, ntaps)
	if ntaps == 1 {
		ret[0] = 1
		return ret
	}
	m := float64(ntaps - 1)

	for i := range ret {
		x := 2 * math.Pi * float64(i) / m
		var v float64
		sign := 1.0
		for k, c := range coeffs {
			v += sign * c * math.Cos(float64(k)*x)
			sign = -sign
		}
		ret[i] = float32(v)
	}
	return ret
}

func HammingWindow(ntaps int) []float32 {
	return cosineSum(ntaps, 0.54, 0.46)
}

func HannWindow(ntaps int) []float32 {
	return cosineSum(ntaps, 0.5, 0.5)
}

func BlackmanWindow(ntaps int) []float32 {
	return cosineSum(ntaps, 0.42, 0.5, 0.08)
}

// BlackmanHarrisWindow is the 4 term, 92 dB variant.
func BlackmanHarrisWindow(ntaps int) []float32 {
	return cosineSum(ntaps, 0.35875, 0.48829, 0.14128, 0.01168)
}

func Window(winType WindowType, ntaps int) ([]float32, error) {
	f, ok := windowFuncs[winType]
	if !ok {
		return nil, fmt.Errorf("unknown window type %d", winType)
	}
	if ntaps < 1 {
		return nil, fmt.Errorf("window needs at least one tap, got %d", ntaps)
	}
	return f(ntaps), nil
}
