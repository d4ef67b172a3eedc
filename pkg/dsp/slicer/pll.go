// Package slicer recovers bits from a soft symbol stream.
package slicer

import (
	"errors"
	"fmt"
	"math"

	"github.com/norasector/aisrx/pkg/dsp/stream"
)

// Message is a control event for a SimplePLL. Messages are queued and take
// effect between two blocks, never in the middle of one.
type Message int

const (
	// MessageStartTraining switches to the fast, acquisition loop gain.
	MessageStartTraining Message = iota
	// MessageStopTraining switches to the slow, tracking loop gain.
	MessageStopTraining
	// MessageReset drops phase and frequency state.
	MessageReset
)

func (m Message) String() string {
	switch m {
	case MessageStartTraining:
		return "start_training"
	case MessageStopTraining:
		return "stop_training"
	case MessageReset:
		return "reset"
	default:
		return fmt.Sprintf("message(%d)", int(m))
	}
}

const (
	DefaultSamplesPerSymbol = 5

	fastGain  = 0.6
	slowGain  = 0.15
	freqGain  = 0.02
	freqLimit = 0.05

	messageQueueLength = 16
)

var ErrMessageQueueFull = errors.New("pll message queue full")

// SimplePLL is a sign transition driven clock recovery loop. A bit is sampled
// each time the phase accumulator wraps; transitions pull the accumulator so
// that they land half way between two sampling instants.
type SimplePLL struct {
	Out stream.Connection[byte]

	nominal float64
	step    float64
	phase   float64

	prevSample float32
	prevBit    byte
	fast       bool
	invert     bool

	messages chan Message
	bit      [1]byte
}

func NewSimplePLL(samplesPerSymbol float64) (*SimplePLL, error) {
	if samplesPerSymbol < 2 {
		return nil, fmt.Errorf("%w: pll needs at least 2 samples per symbol, got %g", stream.ErrInvalidConfig, samplesPerSymbol)
	}
	p := &SimplePLL{
		nominal:  1 / samplesPerSymbol,
		messages: make(chan Message, messageQueueLength),
	}
	p.reset()
	return p, nil
}

func (p *SimplePLL) SetInvert(invert bool) {
	p.invert = invert
}

// Post queues a control message. It never blocks.
func (p *SimplePLL) Post(m Message) error {
	select {
	case p.messages <- m:
		return nil
	default:
		return ErrMessageQueueFull
	}
}

// Training reports whether the fast loop gain is in use.
func (p *SimplePLL) Training() bool {
	return p.fast
}

func (p *SimplePLL) reset() {
	p.phase = 0
	p.step = p.nominal
	p.prevSample = 0
	p.prevBit = 0
	p.fast = true
}

func (p *SimplePLL) apply(m Message) {
	switch m {
	case MessageStartTraining:
		p.fast = true
	case MessageStopTraining:
		p.fast = false
	case MessageReset:
		p.reset()
	}
}

func (p *SimplePLL) drain() {
	for {
		select {
		case m := <-p.messages:
			p.apply(m)
		default:
			return
		}
	}
}

func (p *SimplePLL) Receive(data []float32) error {
	p.drain()

	minStep, maxStep := p.nominal*(1-freqLimit), p.nominal*(1+freqLimit)

	for _, x := range data {
		bit := Slice(x, p.invert)

		if bit != p.prevBit {
			// position of the zero crossing, in samples before x
			var t float64
			if d := x - p.prevSample; d != 0 {
				t = float64(x / d)
			}
			// p.phase still belongs to the previous sample
			e := p.phase + (1-t)*p.step - 0.5

			gain := slowGain
			if p.fast {
				gain = fastGain
			}
			p.phase -= gain * e
			p.step = math.Min(math.Max(p.step-freqGain*e*p.nominal, minStep), maxStep)
		}

		p.phase += p.step
		if p.phase >= 1 {
			p.phase -= math.Floor(p.phase)
			p.bit[0] = bit
			if err := p.Out.Send(p.bit[:]); err != nil {
				return err
			}
		}

		p.prevBit = bit
		p.prevSample = x
	}
	return nil
}
