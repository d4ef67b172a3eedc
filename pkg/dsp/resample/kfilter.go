package resample

import (
	"fmt"

	"github.com/norasector/aisrx/pkg/dsp/filters/fir"
	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// KFilterOutputSize bounds the blocks a DownsampleKFilter sends downstream.
const KFilterOutputSize = 16384 / 2

// DownsampleKFilter is a FIR decimator: the filter is only evaluated for the
// samples that are kept, one every K inputs.
type DownsampleKFilter struct {
	Out stream.Connection[complex64]

	line   fir.DelayLine[complex64]
	k      int
	count  int
	output []complex64
	n      int
}

func NewDownsampleKFilter(taps []float32, k int) (*DownsampleKFilter, error) {
	d := &DownsampleKFilter{output: make([]complex64, KFilterOutputSize)}
	if err := d.SetParams(taps, k); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DownsampleKFilter) SetParams(taps []float32, k int) error {
	if k < 1 {
		return fmt.Errorf("%w: decimation must be at least 1, got %d", stream.ErrInvalidConfig, k)
	}
	if err := d.line.SetTaps(taps); err != nil {
		return err
	}
	d.k = k
	d.count = 0
	return nil
}

func (d *DownsampleKFilter) Receive(data []complex64) error {
	taps := d.line.Reversed()

	for _, x := range data {
		d.line.Push(x)
		d.count++
		if d.count < d.k {
			continue
		}
		d.count = 0

		d.output[d.n] = fir.DotComplex(taps, d.line.Window())
		d.n++
		if d.n == len(d.output) {
			if err := d.flush(); err != nil {
				return err
			}
		}
	}

	return d.flush()
}

func (d *DownsampleKFilter) flush() error {
	if d.n == 0 {
		return nil
	}
	out := d.output[:d.n]
	d.n = 0
	return d.Out.Send(out)
}
