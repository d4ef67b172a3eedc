package fir

import (
	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Filter is a real FIR filter stage.
type Filter struct {
	Out stream.Connection[float32]

	line   DelayLine[float32]
	output []float32
}

func NewFilter(taps []float32) (*Filter, error) {
	f := &Filter{}
	if err := f.SetTaps(taps); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) SetTaps(taps []float32) error {
	return f.line.SetTaps(taps)
}

func (f *Filter) Receive(data []float32) error {
	if len(data) == 0 {
		return nil
	}
	if cap(f.output) < len(data) {
		f.output = make([]float32, len(data))
	}
	out := f.output[:len(data)]

	taps := f.line.Reversed()
	for i, x := range data {
		f.line.Push(x)
		out[i] = Dot(taps, f.line.Window())
	}
	return f.Out.Send(out)
}

// FilterComplex applies real taps to the I and Q components of a complex stream.
type FilterComplex struct {
	Out stream.Connection[complex64]

	line   DelayLine[complex64]
	output []complex64
}

func NewFilterComplex(taps []float32) (*FilterComplex, error) {
	f := &FilterComplex{}
	if err := f.SetTaps(taps); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FilterComplex) SetTaps(taps []float32) error {
	return f.line.SetTaps(taps)
}

func (f *FilterComplex) Receive(data []complex64) error {
	if len(data) == 0 {
		return nil
	}
	if cap(f.output) < len(data) {
		f.output = make([]complex64, len(data))
	}
	out := f.output[:len(data)]

	taps := f.line.Reversed()
	for i, x := range data {
		f.line.Push(x)
		out[i] = DotComplex(taps, f.line.Window())
	}
	return f.Out.Send(out)
}
