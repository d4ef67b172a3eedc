package slicer

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prbs7(n int) []byte {
	s := byte(0x5a)
	ret := make([]byte, n)
	for i := range ret {
		b := ((s >> 6) ^ (s >> 5)) & 1
		s = ((s << 1) | b) & 0x7f
		ret[i] = b
	}
	return ret
}

// trainingBits is an alternating preamble followed by pseudo random data.
func trainingBits() []byte {
	bits := make([]byte, 24)
	for i := range bits {
		bits[i] = byte(i % 2)
	}
	return append(bits, prbs7(1000)...)
}

func level(b byte) float64 {
	if b == 1 {
		return 1
	}
	return -1
}

// nrz renders bits at sps samples per symbol starting phase0 samples into the
// first symbol. With smooth set the last 30% of every symbol ramps linearly to
// the next level.
func nrz(bits []byte, sps, phase0 float64, smooth bool) []float32 {
	n := int(float64(len(bits)-1)*sps) - 6
	ret := make([]float32, n)
	for i := range ret {
		t := (float64(i) + phase0) / sps
		k := int(t)
		f := t - float64(k)
		v := level(bits[k])
		if smooth && f > 0.7 {
			v += (level(bits[k+1]) - v) * (f - 0.7) / 0.3
		}
		ret[i] = float32(v)
	}
	return ret
}

// bitErrors compares got against want after the preamble, allowing the
// recovered stream to be shifted by a few bits.
func bitErrors(want, got []byte) int {
	best := -1
	for d := -4; d <= 4; d++ {
		errs := 0
		end := len(want)
		if len(got)+d < end {
			end = len(got) + d
		}
		for i := 24; i < end-4; i++ {
			j := i - d
			if j >= 0 && j < len(got) && want[i] != got[j] {
				errs++
			}
		}
		if best < 0 || errs < best {
			best = errs
		}
	}
	return best
}

func TestPLLRecoversBits(t *testing.T) {
	bits := trainingBits()

	for _, sps := range []float64{5, 5.1, 4.9} {
		for _, phase0 := range []float64{0, 1.3, 2.5, 4.2} {
			for _, training := range []bool{true, false} {
				for _, smooth := range []bool{false, true} {
					name := fmt.Sprintf("sps=%g/phase=%g/training=%t/smooth=%t", sps, phase0, training, smooth)
					t.Run(name, func(t *testing.T) {
						pll, err := NewSimplePLL(DefaultSamplesPerSymbol)
						require.NoError(t, err)
						if !training {
							require.NoError(t, pll.Post(MessageStopTraining))
						}

						var sink stream.Sink[byte]
						pll.Out.Connect(&sink)

						in := nrz(bits, sps, phase0, smooth)
						for pos := 0; pos < len(in); pos += 97 {
							end := pos + 97
							if end > len(in) {
								end = len(in)
							}
							require.NoError(t, pll.Receive(in[pos:end]))
						}

						assert.Equal(t, training, pll.Training())
						assert.InDelta(t, float64(len(in))/5, len(sink.Data), float64(len(in))/5*0.06)
						assert.Equal(t, 0, bitErrors(bits, sink.Data))
					})
				}
			}
		}
	}
}

// TestPLLSamplesMidSymbol feeds one sample per block so every emitted bit can
// be tied to the sample it was decided on, then checks that decisions land
// around the middle of the symbol rather than next to a transition.
func TestPLLSamplesMidSymbol(t *testing.T) {
	const sps = 5.0
	bits := trainingBits()

	for _, phase0 := range []float64{0, 1.3, 2.5, 4.2} {
		for _, training := range []bool{true, false} {
			t.Run(fmt.Sprintf("phase=%g/training=%t", phase0, training), func(t *testing.T) {
				pll, err := NewSimplePLL(sps)
				require.NoError(t, err)
				if !training {
					require.NoError(t, pll.Post(MessageStopTraining))
				}

				var at int
				var positions []float64
				pll.Out.Connect(stream.ReceiverFunc[byte](func([]byte) error {
					pos := (float64(at) + phase0) / sps
					positions = append(positions, pos-math.Floor(pos))
					return nil
				}))

				in := nrz(bits, sps, phase0, false)
				for i := range in {
					at = i
					require.NoError(t, pll.Receive(in[i:i+1]))
				}

				require.Greater(t, len(positions), 400)
				var sum float64
				for _, p := range positions[200:] {
					sum += p
				}
				mean := sum / float64(len(positions)-200)
				assert.InDelta(t, 0.55, mean, 0.2)
			})
		}
	}
}

func TestPLLEmitsOneBitPerSend(t *testing.T) {
	pll, err := NewSimplePLL(5)
	require.NoError(t, err)

	sends := 0
	pll.Out.Connect(stream.ReceiverFunc[byte](func(b []byte) error {
		assert.Len(t, b, 1)
		sends++
		return nil
	}))

	in := nrz(trainingBits()[:100], 5, 0, false)
	require.NoError(t, pll.Receive(in))
	assert.InDelta(t, len(in)/5, sends, 2)
}

func TestPLLInvert(t *testing.T) {
	bits := trainingBits()
	in := nrz(bits, 5, 2.5, false)

	pll, err := NewSimplePLL(5)
	require.NoError(t, err)
	pll.SetInvert(true)
	var sink stream.Sink[byte]
	pll.Out.Connect(&sink)
	require.NoError(t, pll.Receive(in))

	inverted := make([]byte, len(bits))
	for i, b := range bits {
		inverted[i] = 1 - b
	}
	assert.Equal(t, 0, bitErrors(inverted, sink.Data))
}

func TestPLLMessagesApplyBetweenBlocks(t *testing.T) {
	pll, err := NewSimplePLL(5)
	require.NoError(t, err)
	assert.True(t, pll.Training())

	require.NoError(t, pll.Post(MessageStopTraining))
	// nothing changes until the next block arrives
	assert.True(t, pll.Training())

	require.NoError(t, pll.Receive(nil))
	assert.False(t, pll.Training())

	require.NoError(t, pll.Post(MessageStartTraining))
	require.NoError(t, pll.Post(MessageStopTraining))
	require.NoError(t, pll.Receive([]float32{1}))
	assert.False(t, pll.Training())

	require.NoError(t, pll.Post(MessageReset))
	require.NoError(t, pll.Receive(nil))
	assert.True(t, pll.Training())
}

func TestPLLResetRestartsTiming(t *testing.T) {
	in := nrz(trainingBits(), 5, 1.3, false)

	fresh, err := NewSimplePLL(5)
	require.NoError(t, err)
	var want stream.Sink[byte]
	fresh.Out.Connect(&want)
	require.NoError(t, fresh.Receive(in))

	reused, err := NewSimplePLL(5)
	require.NoError(t, err)
	require.NoError(t, reused.Receive(nrz(trainingBits(), 4.9, 3, true)))
	var got stream.Sink[byte]
	reused.Out.Connect(&got)
	require.NoError(t, reused.Post(MessageReset))
	require.NoError(t, reused.Receive(in))

	assert.Equal(t, want.Data, got.Data)
}

func TestPLLQueueFull(t *testing.T) {
	pll, err := NewSimplePLL(5)
	require.NoError(t, err)
	for i := 0; i < messageQueueLength; i++ {
		require.NoError(t, pll.Post(MessageStartTraining))
	}
	assert.ErrorIs(t, pll.Post(MessageReset), ErrMessageQueueFull)
	assert.Equal(t, "reset", MessageReset.String())
}

func TestPLLInvalidRate(t *testing.T) {
	_, err := NewSimplePLL(1.5)
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)
}

func TestPLLPropagatesErrors(t *testing.T) {
	pll, err := NewSimplePLL(5)
	require.NoError(t, err)
	boom := errors.New("boom")
	pll.Out.Connect(stream.ReceiverFunc[byte](func([]byte) error { return boom }))

	assert.ErrorIs(t, pll.Receive(nrz(trainingBits(), 5, 0, false)), boom)
}

func TestPLLSilenceAfterReset(t *testing.T) {
	p, err := NewSimplePLL(5)
	require.NoError(t, err)
	var sink stream.Sink[byte]
	p.Out.Connect(&sink)

	require.NoError(t, p.Receive(make([]float32, 50)))
	assert.InDelta(t, 10, len(sink.Data), 1)
	for _, b := range sink.Data {
		assert.Equal(t, byte(1), b)
	}

	sink.Reset()
	require.NoError(t, p.Receive(nrz(trainingBits(), 5, 0, false)))
	assert.NotEmpty(t, sink.Data)
}
