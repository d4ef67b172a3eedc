// Package convert turns raw 8 bit IQ from a device into complex64 samples
// while decimating by 8, 16 or 32.
//
// The bias is removed and the decimation runs on 32 bit integers. Samples are
// converted to float only once, after the last stage.
package convert

import (
	"fmt"

	"github.com/norasector/aisrx/pkg/dsp/filters/cic"
	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const (
	cu8Bias   = 128
	fullScale = 128
)

func newCascade(stages int) (*cic.Cascade, error) {
	if stages < 3 || stages > 5 {
		return nil, fmt.Errorf("%w: converter supports 3 to 5 halving stages, got %d", stream.ErrInvalidConfig, stages)
	}
	return cic.NewCascade(stages, fullScale), nil
}

type base struct {
	Out stream.Connection[complex64]

	cascade *cic.Cascade
	output  []complex64
}

// Factor is the decimation applied by the converter.
func (b *base) Factor() int {
	return b.cascade.Factor()
}

func (b *base) buffer(inputLength int) []complex64 {
	need := inputLength/b.cascade.Factor() + 1
	if cap(b.output) < need {
		b.output = make([]complex64, need)
	}
	return b.output[:cap(b.output)]
}

func (b *base) flush(out []complex64) error {
	if len(out) == 0 {
		return nil
	}
	return b.Out.Send(out)
}

// DownsampleCU8 converts unsigned, 128 biased IQ pairs.
type DownsampleCU8 struct {
	base
}

func NewDownsampleCU8(stages int) (*DownsampleCU8, error) {
	c, err := newCascade(stages)
	if err != nil {
		return nil, err
	}
	return &DownsampleCU8{base{cascade: c}}, nil
}

func NewDownsample8CU8() *DownsampleCU8 {
	return &DownsampleCU8{base{cascade: cic.NewCascade(3, fullScale)}}
}

func NewDownsample16CU8() *DownsampleCU8 {
	return &DownsampleCU8{base{cascade: cic.NewCascade(4, fullScale)}}
}

func NewDownsample32CU8() *DownsampleCU8 {
	return &DownsampleCU8{base{cascade: cic.NewCascade(5, fullScale)}}
}

func (d *DownsampleCU8) Receive(data []stream.CU8) error {
	out := d.buffer(len(data))
	n := 0
	for _, s := range data {
		if v, ok := d.cascade.Push(int32(s.I)-cu8Bias, int32(s.Q)-cu8Bias); ok {
			out[n] = v
			n++
		}
	}
	return d.flush(out[:n])
}

// DownsampleCS8 converts signed IQ pairs.
type DownsampleCS8 struct {
	base
}

func NewDownsampleCS8(stages int) (*DownsampleCS8, error) {
	c, err := newCascade(stages)
	if err != nil {
		return nil, err
	}
	return &DownsampleCS8{base{cascade: c}}, nil
}

func NewDownsample8CS8() *DownsampleCS8 {
	return &DownsampleCS8{base{cascade: cic.NewCascade(3, fullScale)}}
}

func NewDownsample16CS8() *DownsampleCS8 {
	return &DownsampleCS8{base{cascade: cic.NewCascade(4, fullScale)}}
}

func NewDownsample32CS8() *DownsampleCS8 {
	return &DownsampleCS8{base{cascade: cic.NewCascade(5, fullScale)}}
}

func (d *DownsampleCS8) Receive(data []stream.CS8) error {
	out := d.buffer(len(data))
	n := 0
	for _, s := range data {
		if v, ok := d.cascade.Push(int32(s.I), int32(s.Q)); ok {
			out[n] = v
			n++
		}
	}
	return d.flush(out[:n])
}
