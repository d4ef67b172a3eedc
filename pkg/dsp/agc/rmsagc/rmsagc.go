package rmsagc

import (
	"math"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// RMSAGC is a root-mean-squared automatic gain controller
type RMSAGC struct {
	Out stream.Connection[float32]

	alpha   float64
	beta    float64
	gain    float64
	average float64
	output  []float32
}

// NewRMSAGC returns an AGC scaling its input to an RMS level of k. alpha is
// the smoothing factor of the power average.
func NewRMSAGC(alpha float64, k float64) *RMSAGC {
	return &RMSAGC{
		alpha:   alpha,
		beta:    1 - alpha,
		average: 1.0,
		gain:    k,
	}
}

func (r *RMSAGC) Receive(input []float32) error {
	if len(input) == 0 {
		return nil
	}
	if cap(r.output) < len(input) {
		r.output = make([]float32, len(input))
	}
	out := r.output[:len(input)]

	for i, v := range input {
		cur := float64(v)
		r.average = r.beta*r.average + r.alpha*cur*cur
		if r.average > 0 {
			out[i] = float32(r.gain * cur / math.Sqrt(r.average))
		} else {
			out[i] = float32(r.gain * cur)
		}
	}

	return r.Out.Send(out)
}
