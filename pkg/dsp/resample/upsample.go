package resample

import (
	"fmt"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Upsample raises the sample rate by m/n using linear interpolation between
// consecutive inputs. The first input only primes the interpolator, so output
// starts at that sample rather than ramping up from zero.
type Upsample struct {
	Out stream.Connection[complex64]

	increment float64
	alpha     float64
	last      complex64
	primed    bool
	output    []complex64
	n, m      int
}

func NewUpsample(n, m int) (*Upsample, error) {
	u := &Upsample{}
	if err := u.SetParams(n, m); err != nil {
		return nil, err
	}
	return u, nil
}

// SetParams sets the ratio. Only true upsampling, 0 < n < m, is accepted.
func (u *Upsample) SetParams(n, m int) error {
	if n <= 0 || m <= 0 || n >= m {
		return fmt.Errorf("%w: upsample needs 0 < n < m, got n=%d m=%d", stream.ErrInvalidConfig, n, m)
	}
	u.n, u.m = n, m
	u.increment = float64(n) / float64(m)
	u.alpha = 0
	u.primed = false
	return nil
}

func (u *Upsample) Ratio() (n, m int) {
	return u.n, u.m
}

func (u *Upsample) Receive(data []complex64) error {
	need := len(data)*u.m/u.n + 2
	if cap(u.output) < need {
		u.output = make([]complex64, need)
	}
	out := u.output[:0]

	for _, b := range data {
		if !u.primed {
			u.last = b
			u.primed = true
			continue
		}
		for u.alpha < 1 {
			alpha := float32(u.alpha)
			out = append(out, complex(1-alpha, 0)*u.last+complex(alpha, 0)*b)
			u.alpha += u.increment
		}
		u.alpha -= 1
		u.last = b
	}
	u.output = out

	if len(out) == 0 {
		return nil
	}
	return u.Out.Send(out)
}
