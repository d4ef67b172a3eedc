// Package cic implements 5th order, rate 2 cascaded integrator-comb sections.
//
// With a differential delay of one and a rate change of two the CIC response
// collapses to the binomial (1+z^-1)^5, which is what State computes.
package cic

import "github.com/norasector/aisrx/pkg/dsp/stream"

type Stage int

const (
	Stage0 Stage = iota
	Stage1
	Stage2
	Stage3
	Stage4
	Order
)

// DCGain of a single section.
const DCGain = 1 << Order

type Sample interface {
	~int32 | ~complex64
}

// State holds the delay registers of one (1+z^-1)^5 section.
type State[T Sample] struct {
	h [Order]T
}

// Push feeds one sample through the section and returns its unscaled output.
func (s *State[T]) Push(x T) T {
	for k := Stage0; k < Order; k++ {
		y := x + s.h[k]
		s.h[k] = x
		x = y
	}
	return x
}

func (s *State[T]) Reset() {
	s.h = [Order]T{}
}

const complexScale = complex(1.0/DCGain, 0)

// Downsample2CIC5 halves the sample rate of a complex stream.
type Downsample2CIC5 struct {
	Out stream.Connection[complex64]

	state  State[complex64]
	odd    bool
	output []complex64
}

func NewDownsample2CIC5() *Downsample2CIC5 {
	return &Downsample2CIC5{}
}

func (d *Downsample2CIC5) Receive(data []complex64) error {
	if cap(d.output) < len(data)/2+1 {
		d.output = make([]complex64, len(data)/2+1)
	}
	out := d.output[:cap(d.output)]

	n := 0
	for _, x := range data {
		y := d.state.Push(x)
		if d.odd {
			out[n] = y * complexScale
			n++
		}
		d.odd = !d.odd
	}

	if n == 0 {
		return nil
	}
	return d.Out.Send(out[:n])
}

// FilterCIC5 applies the same response as Downsample2CIC5 without changing the rate.
type FilterCIC5 struct {
	Out stream.Connection[complex64]

	state  State[complex64]
	output []complex64
}

func NewFilterCIC5() *FilterCIC5 {
	return &FilterCIC5{}
}

func (f *FilterCIC5) Receive(data []complex64) error {
	if cap(f.output) < len(data) {
		f.output = make([]complex64, len(data))
	}
	out := f.output[:len(data)]

	for i, x := range data {
		out[i] = f.state.Push(x) * complexScale
	}

	if len(out) == 0 {
		return nil
	}
	return f.Out.Send(out)
}
