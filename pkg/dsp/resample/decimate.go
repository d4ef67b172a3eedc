// Package resample holds the rate changing stages that are not CIC based.
package resample

import (
	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Decimate2 keeps every other sample. It does no filtering of its own and is
// meant to follow an anti-alias filter.
type Decimate2 struct {
	Out stream.Connection[complex64]

	skip   bool
	output []complex64
}

func NewDecimate2() *Decimate2 {
	return &Decimate2{}
}

func (d *Decimate2) Receive(data []complex64) error {
	if cap(d.output) < len(data)/2+1 {
		d.output = make([]complex64, len(data)/2+1)
	}
	out := d.output[:0]

	for _, x := range data {
		if !d.skip {
			out = append(out, x)
		}
		d.skip = !d.skip
	}

	if len(out) == 0 {
		return nil
	}
	return d.Out.Send(out)
}
