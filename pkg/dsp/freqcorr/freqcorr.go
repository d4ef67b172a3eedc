// Package freqcorr removes a residual carrier offset from a complex stream.
//
// Squaring a 2-ary FSK or MSK signal folds its modulation onto discrete
// spectral lines around twice the carrier offset. The offset is estimated from
// an FFT of the last N squared samples and taken out by a rotating phasor.
package freqcorr

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

const (
	DefaultLogN   = 11
	DefaultWindow = 750

	minSize = 16
)

// SquareFreqOffsetCorrection re-estimates the offset every window samples,
// once N samples have been seen. Each estimate is taken on the uncorrected
// input, so it replaces rather than refines the previous one.
type SquareFreqOffsetCorrection struct {
	Out stream.Connection[complex64]

	n       int
	window  int
	spacing int

	history []complex128
	pos     int
	filled  bool
	count   int

	fft    *fourier.CmplxFFT
	coeffs []complex128
	mags   []float64

	offset float64
	rot    complex128
	step   complex128
	output []complex64
}

func NewSquareFreqOffsetCorrection() *SquareFreqOffsetCorrection {
	s := &SquareFreqOffsetCorrection{}
	if err := s.SetParams(1<<DefaultLogN, DefaultWindow); err != nil {
		panic(err)
	}
	return s
}

// SetParams sets the FFT size n, a power of two, and the number of samples
// between estimates. It clears any state.
func (s *SquareFreqOffsetCorrection) SetParams(n, window int) error {
	if n < minSize || n&(n-1) != 0 {
		return fmt.Errorf("%w: fft size must be a power of two >= %d, got %d", stream.ErrInvalidConfig, minSize, n)
	}
	if window < 1 {
		return fmt.Errorf("%w: estimation window must be positive, got %d", stream.ErrInvalidConfig, window)
	}
	if s.spacing >= n/2 {
		return fmt.Errorf("%w: tone spacing %d too wide for fft size %d", stream.ErrInvalidConfig, s.spacing, n)
	}

	s.n = n
	s.window = window
	s.history = make([]complex128, n)
	s.coeffs = make([]complex128, n)
	s.mags = make([]float64, n)
	s.fft = fourier.NewCmplxFFT(n)
	s.pos = 0
	s.filled = false
	s.count = 0
	s.offset = 0
	s.rot = 1
	s.step = 1
	return nil
}

// SetToneSpacing makes the estimator look for the strongest pair of lines
// bins apart and use their midpoint. Zero selects the single strongest line.
func (s *SquareFreqOffsetCorrection) SetToneSpacing(bins int) error {
	if bins < 0 || bins >= s.n/2 {
		return fmt.Errorf("%w: tone spacing must be in [0, %d), got %d", stream.ErrInvalidConfig, s.n/2, bins)
	}
	s.spacing = bins
	return nil
}

// Offset is the current estimate in cycles per sample.
func (s *SquareFreqOffsetCorrection) Offset() float64 {
	return s.offset
}

func (s *SquareFreqOffsetCorrection) Receive(data []complex64) error {
	if len(data) == 0 {
		return nil
	}
	if cap(s.output) < len(data) {
		s.output = make([]complex64, len(data))
	}
	out := s.output[:len(data)]
	mask := s.n - 1

	for i, x := range data {
		v := complex128(x)
		s.history[s.pos] = v * v
		s.pos = (s.pos + 1) & mask
		if s.pos == 0 {
			s.filled = true
		}

		s.count++
		if s.filled && s.count >= s.window {
			s.estimate()
			s.count = 0
		}

		out[i] = complex64(v * s.rot)
		s.rot *= s.step
	}
	s.rot /= complex(cmplx.Abs(s.rot), 0)

	return s.Out.Send(out)
}

// estimate only needs magnitudes, so the circular history goes into the FFT
// without being rotated into time order.
func (s *SquareFreqOffsetCorrection) estimate() {
	s.coeffs = s.fft.Coefficients(s.coeffs, s.history)
	for i, c := range s.coeffs {
		s.mags[i] = cmplx.Abs(c)
	}

	half := s.n / 2
	mask := s.n - 1
	best := -half
	bestScore := -1.0
	for k := -half; k < half-s.spacing; k++ {
		score := s.mags[k&mask]
		if s.spacing > 0 {
			score += s.mags[(k+s.spacing)&mask]
		}
		if score > bestScore {
			bestScore = score
			best = k
		}
	}

	center := float64(best) + float64(s.spacing)/2
	s.offset = center / float64(2*s.n)
	s.step = cmplx.Rect(1, -2*math.Pi*s.offset)
}
