package fir

import (
	"testing"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestImpulseReproducesTaps(t *testing.T) {
	taps := []float32{0.5, -0.25, 0.125, 1}
	f, err := NewFilter(taps)
	require.NoError(t, err)

	var sink stream.Sink[float32]
	f.Out.Connect(&sink)

	require.NoError(t, f.Receive([]float32{1, 0}))
	require.NoError(t, f.Receive([]float32{0, 0, 0, 0}))

	assert.Equal(t, []float32{0.5, -0.25, 0.125, 1, 0, 0}, sink.Data)
}

func TestComplexImpulse(t *testing.T) {
	taps := []float32{1, 2, 3}
	f, err := NewFilterComplex(taps)
	require.NoError(t, err)

	var sink stream.Sink[complex64]
	f.Out.Connect(&sink)

	require.NoError(t, f.Receive([]complex64{complex(1, -1), 0, 0, 0}))
	assert.Equal(t, []complex64{complex(1, -1), complex(2, -2), complex(3, -3), 0}, sink.Data)
}

func TestEmptyTapsRejected(t *testing.T) {
	_, err := NewFilter(nil)
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)

	_, err = NewFilterComplex([]float32{})
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)
}

func TestSetTapsResetsHistory(t *testing.T) {
	f, err := NewFilter([]float32{1, 1, 1})
	require.NoError(t, err)
	var sink stream.Sink[float32]
	f.Out.Connect(&sink)

	require.NoError(t, f.Receive([]float32{5, 5, 5}))
	require.NoError(t, f.SetTaps([]float32{1, 1}))
	sink.Reset()

	require.NoError(t, f.Receive([]float32{1}))
	assert.Equal(t, []float32{1}, sink.Data)
}

func TestFilterChunkingInvariance(t *testing.T) {
	taps := MakeLowPass(1, 48000, 6000, 3000, Hamming)

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOfN(rapid.Float32Range(-1, 1), 0, 400).Draw(t, "in")

		whole, _ := NewFilter(taps)
		var want stream.Sink[float32]
		whole.Out.Connect(&want)
		if err := whole.Receive(in); err != nil {
			t.Fatal(err)
		}

		split, _ := NewFilter(taps)
		var got stream.Sink[float32]
		split.Out.Connect(&got)
		for pos := 0; pos < len(in); {
			s := rapid.IntRange(1, len(in)-pos).Draw(t, "chunk")
			if err := split.Receive(in[pos : pos+s]); err != nil {
				t.Fatal(err)
			}
			pos += s
		}

		assert.Equal(t, want.Data, got.Data)
	})
}

func TestLowPassResponse(t *testing.T) {
	taps := MakeLowPass(1, 96000, 10000, 4000, Hamming)
	require.Equal(t, 1, len(taps)%2)

	// symmetric taps
	for i := range taps {
		assert.InDelta(t, taps[i], taps[len(taps)-1-i], 1e-7)
	}

	assert.InDelta(t, 1.0, GainAt(taps, 96000, 0), 1e-5)
	assert.InDelta(t, 1.0, GainAt(taps, 96000, 5000), 0.01)
	assert.Less(t, GainAt(taps, 96000, 20000), 0.01)

	resp := MagnitudeResponse(taps, 1024)
	require.Len(t, resp, 1024)
	assert.InDelta(t, 1.0, resp[0], 1e-5)
	// bins above 16 kHz are all in the stopband
	for k := 16000 * 1024 / 96000; k < 512; k++ {
		assert.Less(t, resp[k], 0.01, "bin %d", k)
	}
}

func TestWindows(t *testing.T) {
	h := HammingWindow(11)
	assert.InDelta(t, 0.08, h[0], 1e-6)
	assert.InDelta(t, 1.0, h[5], 1e-6)

	hn := HannWindow(11)
	assert.InDelta(t, 0.0, hn[0], 1e-6)
	assert.InDelta(t, 1.0, hn[5], 1e-6)

	b := BlackmanWindow(11)
	assert.InDelta(t, 0.0, b[0], 1e-6)
	assert.InDelta(t, 1.0, b[5], 1e-6)

	bh := BlackmanHarrisWindow(11)
	assert.InDelta(t, 1.0, bh[5], 1e-6)

	_, err := Window(WindowType(42), 4)
	assert.Error(t, err)
	_, err = Window(Hann, 0)
	assert.Error(t, err)
}
