// Package quad implements a quadrature FM discriminator.
package quad

import (
	"math"

	"github.com/racerxdl/segdsp/dsp"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// QuadDemod outputs gain times the phase change between consecutive samples.
type QuadDemod struct {
	Out stream.Connection[float32]

	gain    float32
	last    complex64
	samples []complex64
	output  []float32
}

func MakeQuadDemod(gain float32) *QuadDemod {
	return &QuadDemod{
		gain: gain,
	}
}

// GainForDeviation returns the gain mapping a deviation of deviationHz at
// sampleRate to an output of 1.
func GainForDeviation(sampleRate, deviationHz float64) float32 {
	return float32(sampleRate / (2 * math.Pi * deviationHz))
}

func (f *QuadDemod) Receive(input []complex64) error {
	if len(input) == 0 {
		return nil
	}
	f.samples = append(append(f.samples[:0], f.last), input...)
	tmp := dsp.MultiplyConjugate(f.samples[1:], f.samples, len(input))

	if cap(f.output) < len(input) {
		f.output = make([]float32, len(input))
	}
	out := f.output[:len(input)]
	for i := range out {
		out[i] = f.gain * float32(math.Atan2(float64(imag(tmp[i])), float64(real(tmp[i]))))
	}

	f.last = input[len(input)-1]
	return f.Out.Send(out)
}
