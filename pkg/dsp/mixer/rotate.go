package mixer

import (
	"math"
	"math/cmplx"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const (
	tau float64 = math.Pi * 2
)

// Rotate mixes a complex stream with a unit phasor that advances by a fixed
// angle every sample. Up carries the input shifted up in frequency and Down the
// input shifted down by the same amount.
type Rotate struct {
	Up   stream.Connection[complex64]
	Down stream.Connection[complex64]

	rot  complex128
	mult complex128
	up   []complex64
	down []complex64
}

// NewRotate returns a mixer advancing by angle radians per sample.
func NewRotate(angle float64) *Rotate {
	r := &Rotate{rot: 1}
	r.SetRotation(angle)
	return r
}

// NewRotateHz returns a mixer shifting by frequency Hz at sampleRate.
func NewRotateHz(sampleRate int, frequency int) *Rotate {
	return NewRotate(float64(frequency) * tau / float64(sampleRate))
}

// SetRotation changes the step without disturbing the current phase.
func (r *Rotate) SetRotation(angle float64) {
	r.mult = cmplx.Rect(1, angle)
}

func (r *Rotate) Receive(data []complex64) error {
	if len(data) == 0 {
		return nil
	}
	if cap(r.up) < len(data) {
		r.up = make([]complex64, len(data))
		r.down = make([]complex64, len(data))
	}
	up, down := r.up[:len(data)], r.down[:len(data)]

	for i, x := range data {
		rot := complex64(r.rot)
		up[i] = x * rot
		down[i] = x * complex(real(rot), -imag(rot))
		r.rot *= r.mult
	}
	r.rot /= complex(cmplx.Abs(r.rot), 0)

	if err := r.Up.Send(up); err != nil {
		return err
	}
	return r.Down.Send(down)
}
