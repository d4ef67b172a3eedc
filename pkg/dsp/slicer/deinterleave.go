package slicer

import (
	"fmt"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Deinterleave splits a stream carrying N time multiplexed channels, sending
// sample i to Out[i mod N]. The position carries over between blocks.
type Deinterleave[T any] struct {
	Out []stream.Connection[T]

	last int
}

func NewDeinterleave[T any](n int) (*Deinterleave[T], error) {
	d := &Deinterleave[T]{}
	if err := d.SetConnections(n); err != nil {
		return nil, err
	}
	return d, nil
}

// SetConnections replaces the outputs with n fresh, unconnected ones.
func (d *Deinterleave[T]) SetConnections(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: deinterleave needs at least one output, got %d", stream.ErrInvalidConfig, n)
	}
	d.Out = make([]stream.Connection[T], n)
	d.last = 0
	return nil
}

func (d *Deinterleave[T]) Receive(data []T) error {
	for i := range data {
		if err := d.Out[d.last].Send(data[i : i+1]); err != nil {
			return err
		}
		d.last++
		if d.last == len(d.Out) {
			d.last = 0
		}
	}
	return nil
}
