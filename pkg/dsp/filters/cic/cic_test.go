package cic

import (
	"testing"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStateImpulseIsBinomial(t *testing.T) {
	var s State[int32]
	var got []int32
	for i := 0; i < 8; i++ {
		x := int32(0)
		if i == 0 {
			x = 1
		}
		got = append(got, s.Push(x))
	}
	assert.Equal(t, []int32{1, 5, 10, 10, 5, 1, 0, 0}, got)

	s.Reset()
	assert.Equal(t, int32(0), s.Push(0))
}

func TestDownsample2CIC5DCGain(t *testing.T) {
	d := NewDownsample2CIC5()
	var sink stream.Sink[complex64]
	d.Out.Connect(&sink)

	in := make([]complex64, 64)
	for i := range in {
		in[i] = complex(1, -0.5)
	}
	require.NoError(t, d.Receive(in))

	require.Len(t, sink.Data, 32)
	for _, v := range sink.Data[3:] {
		assert.Equal(t, complex64(complex(1, -0.5)), v)
	}
}

func TestDownsample2CIC5RejectsNyquist(t *testing.T) {
	d := NewDownsample2CIC5()
	var sink stream.Sink[complex64]
	d.Out.Connect(&sink)

	in := make([]complex64, 40)
	for i := range in {
		if i%2 == 0 {
			in[i] = 1
		} else {
			in[i] = -1
		}
	}
	require.NoError(t, d.Receive(in))
	for _, v := range sink.Data[3:] {
		assert.Equal(t, complex64(0), v)
	}
}

func TestDownsample2CIC5EmptyBlock(t *testing.T) {
	d := NewDownsample2CIC5()
	var sink stream.Sink[complex64]
	d.Out.Connect(&sink)

	require.NoError(t, d.Receive(nil))
	require.NoError(t, d.Receive([]complex64{1}))
	assert.Equal(t, 0, sink.Blocks)
	require.NoError(t, d.Receive([]complex64{1}))
	assert.Equal(t, 1, sink.Blocks)
}

func TestFilterCIC5Impulse(t *testing.T) {
	f := NewFilterCIC5()
	var sink stream.Sink[complex64]
	f.Out.Connect(&sink)

	require.NoError(t, f.Receive([]complex64{32, 0, 0}))
	require.NoError(t, f.Receive([]complex64{0, 0, 0, 0}))

	want := []complex64{1, 5, 10, 10, 5, 1, 0}
	assert.Equal(t, want, sink.Data)
}

func chunks(t *rapid.T, n int) []int {
	var sizes []int
	for n > 0 {
		s := rapid.IntRange(0, n).Draw(t, "chunk")
		if s == 0 {
			s = 1
		}
		sizes = append(sizes, s)
		n -= s
	}
	return sizes
}

func TestDownsample2CIC5ChunkingInvariance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")
		in := make([]complex64, n)
		for i := range in {
			in[i] = complex(float32(i%7)-3, float32(i%5)-2)
		}

		whole := NewDownsample2CIC5()
		var want stream.Sink[complex64]
		whole.Out.Connect(&want)
		if err := whole.Receive(in); err != nil {
			t.Fatal(err)
		}

		split := NewDownsample2CIC5()
		var got stream.Sink[complex64]
		split.Out.Connect(&got)
		pos := 0
		for _, s := range chunks(t, n) {
			if err := split.Receive(in[pos : pos+s]); err != nil {
				t.Fatal(err)
			}
			pos += s
		}

		assert.Len(t, got.Data, n/2)
		assert.Equal(t, want.Data, got.Data)
	})
}

func TestCascadeDC(t *testing.T) {
	for _, stages := range []int{3, 4, 5} {
		c := NewCascade(stages, 128)
		assert.Equal(t, 1<<stages, c.Factor())

		var outputs []complex64
		for i := 0; i < 64*c.Factor(); i++ {
			if v, ok := c.Push(72, -128); ok {
				outputs = append(outputs, v)
			}
		}
		require.Len(t, outputs, 64)
		for _, v := range outputs[8:] {
			assert.Equal(t, complex64(complex(0.5625, -1)), v, "stages %d", stages)
		}
	}
}
