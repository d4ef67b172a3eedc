package fir

import (
	"fmt"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// DelayLine keeps the last len(taps) inputs in a buffer of twice that size so
// the newest window is always contiguous: every sample is written at pos and
// pos+N.
type DelayLine[T float32 | complex64] struct {
	reversed []float32
	buffer   []T
	pos      int
}

// SetTaps replaces the taps and clears the history.
func (d *DelayLine[T]) SetTaps(taps []float32) error {
	if len(taps) == 0 {
		return fmt.Errorf("%w: filter needs at least one tap", stream.ErrInvalidConfig)
	}
	n := len(taps)
	d.reversed = make([]float32, n)
	for i, h := range taps {
		d.reversed[n-1-i] = h
	}
	d.buffer = make([]T, 2*n)
	d.pos = 0
	return nil
}

func (d *DelayLine[T]) Len() int {
	return len(d.reversed)
}

func (d *DelayLine[T]) Push(x T) {
	n := len(d.reversed)
	d.buffer[d.pos] = x
	d.buffer[d.pos+n] = x
	d.pos++
	if d.pos == n {
		d.pos = 0
	}
}

// Window returns the last N inputs, oldest first.
func (d *DelayLine[T]) Window() []T {
	return d.buffer[d.pos : d.pos+len(d.reversed)]
}

// Reversed returns the taps in the order matching Window.
func (d *DelayLine[T]) Reversed() []float32 {
	return d.reversed
}

func Dot(taps, window []float32) float32 {
	var acc float32
	for j, h := range taps {
		acc += h * window[j]
	}
	return acc
}

func DotComplex(taps []float32, window []complex64) complex64 {
	var re, im float32
	for j, h := range taps {
		re += h * real(window[j])
		im += h * imag(window[j])
	}
	return complex(re, im)
}
